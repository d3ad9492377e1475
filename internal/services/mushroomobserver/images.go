package mushroomobserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nemfreview/internal/services"
)

// ImageUpload describes one local image to upload.
type ImageUpload struct {
	Path         string
	OriginalName string
	// CopyrightHolder overrides the configured holder.
	CopyrightHolder string
	Notes           string
}

// UploadImage uploads the image at upload.Path and returns the new image id.
func (c *Client) UploadImage(ctx context.Context, upload ImageUpload) (int64, error) {
	file, err := os.Open(upload.Path)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "mushroomobserver", "upload image", "open image", err)
	}
	defer file.Close()

	name := filepath.Base(upload.Path)
	originalName := strings.TrimSpace(upload.OriginalName)
	if originalName == "" {
		originalName = name
	}
	holder := strings.TrimSpace(upload.CopyrightHolder)
	if holder == "" {
		holder = c.copyrightHolder
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := [][2]string{
		{"copyright_holder", holder},
		{"license", strconv.Itoa(c.licenseID)},
		{"notes", upload.Notes},
		{"original_name", originalName},
	}
	if c.apiKey != "" {
		fields = append([][2]string{{"api_key", c.apiKey}}, fields...)
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return 0, fmt.Errorf("write %s field: %w", field[0], err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="upload"; filename=%q`, name))
	header.Set("Content-Type", imageContentType(name))
	part, err := writer.CreatePart(header)
	if err != nil {
		return 0, fmt.Errorf("create upload part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return 0, fmt.Errorf("copy image %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("finish upload body: %w", err)
	}

	env, err := c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/api2/images",
		endpoint:    "images.create",
		body:        &body,
		contentType: writer.FormDataContentType(),
	})
	if err != nil {
		return 0, err
	}
	return resultID("images.create", env)
}

func imageContentType(name string) string {
	if contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); contentType != "" {
		return contentType
	}
	return "image/jpeg"
}
