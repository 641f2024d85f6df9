package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-bookhive"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialModel is the Bun model for stored session credentials.
type CredentialModel struct {
	bun.BaseModel `bun:"table:credentials"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid"`
	Name      string    `bun:"name,notnull,unique"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,default:current_timestamp"`
}

// CredentialStore implements bookhive.TokenStore on top of a generic
// credentials repository. Records are looked up by name.
type CredentialStore struct {
	repository.Repository[*CredentialModel]
	db  *bun.DB
	now func() time.Time
}

var _ bookhive.TokenStore = (*CredentialStore)(nil)

// NewCredentialStore creates a new store.
func NewCredentialStore(db *bun.DB) *CredentialStore {
	repo := repository.NewRepository[*CredentialModel](db, repository.ModelHandlers[*CredentialModel]{
		NewRecord: func() *CredentialModel {
			return &CredentialModel{}
		},
		GetID: func(record *CredentialModel) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *CredentialModel, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &CredentialStore{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// Get implements bookhive.TokenStore. Missing keys yield an empty value.
func (r *CredentialStore) Get(ctx context.Context, key string) (string, error) {
	return r.GetTx(ctx, r.db, key)
}

func (r *CredentialStore) GetTx(ctx context.Context, tx bun.IDB, key string) (string, error) {
	record, err := r.find(ctx, tx, key)
	if err != nil || record == nil {
		return "", err
	}
	return record.Value, nil
}

// Set implements bookhive.TokenStore.
func (r *CredentialStore) Set(ctx context.Context, key, value string) error {
	return r.SetTx(ctx, r.db, key, value)
}

// SetTx updates the record named key or creates it
func (r *CredentialStore) SetTx(ctx context.Context, tx bun.IDB, key, value string) error {
	record := &CredentialModel{
		Name:      key,
		Value:     value,
		UpdatedAt: r.now().UTC(),
	}

	current, err := r.find(ctx, tx, key)
	if err != nil {
		return err
	}

	if current != nil {
		record.ID = current.ID
		_, err = r.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
		return err
	}

	record.ID = uuid.New()
	_, err = r.Repository.CreateTx(ctx, tx, record)
	return err
}

// Delete implements bookhive.TokenStore.
func (r *CredentialStore) Delete(ctx context.Context, key string) error {
	return r.DeleteTx(ctx, r.db, key)
}

func (r *CredentialStore) DeleteTx(ctx context.Context, tx bun.IDB, key string) error {
	_, err := tx.NewDelete().
		Model((*CredentialModel)(nil)).
		Where("name = ?", key).
		Exec(ctx)
	return err
}

// UpdatedAt returns when key was last written
func (r *CredentialStore) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	record, err := r.find(ctx, r.db, key)
	if err != nil || record == nil {
		return time.Time{}, false, err
	}
	return record.UpdatedAt, true, nil
}

// find returns nil without error when key is not stored
func (r *CredentialStore) find(ctx context.Context, tx bun.IDB, key string) (*CredentialModel, error) {
	record, err := r.Repository.GetByIdentifierTx(ctx, tx, key)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
