package doctor

import "context"

type ProfileRepository interface {
	// ListAvailable returns verified, available doctors whose specialization
	// contains specialty, ignoring case. An empty specialty matches all.
	ListAvailable(ctx context.Context, specialty string) ([]*Profile, error)
	GetByID(ctx context.Context, id int64) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
}
