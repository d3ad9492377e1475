package review

import (
	"context"

	"nemfreview/internal/services/mushroomobserver"
)

// External is the mutation surface of the external observation system,
// bound to one reviewer's credentials.
type External interface {
	VerifyObservation(ctx context.Context, id int64) (bool, error)
	UploadImage(ctx context.Context, upload mushroomobserver.ImageUpload) (int64, error)
	CreateObservation(ctx context.Context, obs mushroomobserver.NewObservation) (int64, error)
	AttachImage(ctx context.Context, observationID, imageID int64) error
	AppendObservationNotes(ctx context.Context, observationID int64, text string) error
	CreateFieldSlip(ctx context.Context, code string, observationID, projectID int64) error
	AddObservationToProject(ctx context.Context, observationID, projectID int64) error
	ObservationURL(id int64) string
}

// ExternalFactory returns the External acting for holder.
type ExternalFactory func(holder string) (External, error)

// PoolFactory adapts a client pool into an ExternalFactory.
func PoolFactory(pool *mushroomobserver.Pool) ExternalFactory {
	return func(holder string) (External, error) {
		client, err := pool.For(holder)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
