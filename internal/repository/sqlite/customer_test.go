package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/detailing-api/internal/model"
	apperrors "github.com/jwalitptl/detailing-api/pkg/errors"
)

func seedCustomer(t *testing.T, repo interface {
	Create(context.Context, *model.Customer) (*model.Customer, error)
}, name, email, phone string) *model.Customer {
	t.Helper()
	c, err := repo.Create(context.Background(), &model.Customer{Name: name, Email: email, Phone: phone})
	require.NoError(t, err)
	return c
}

func TestCustomerRepository_CreateWithOptionalFields(t *testing.T) {
	repo := NewCustomerRepository(newTestDB(t))

	created, err := repo.Create(context.Background(), &model.Customer{
		Name:    "Ana Diaz",
		Email:   "ana@example.com",
		Phone:   "555-0100",
		Address: strPtr("12 Elm St"),
	})
	require.NoError(t, err)
	require.NotNil(t, created.Address)
	assert.Equal(t, "12 Elm St", *created.Address)
	assert.Nil(t, created.Notes)
}

func TestCustomerRepository_EmailConflictIgnoresCase(t *testing.T) {
	repo := NewCustomerRepository(newTestDB(t))
	seedCustomer(t, repo, "Ana", "ana@example.com", "555-0100")

	_, err := repo.Create(context.Background(), &model.Customer{Name: "Other", Email: "ANA@example.com", Phone: "555-0101"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCustomerRepository_ListNewestFirst(t *testing.T) {
	repo := NewCustomerRepository(newTestDB(t))
	seedCustomer(t, repo, "First", "first@example.com", "1")
	seedCustomer(t, repo, "Second", "second@example.com", "2")

	customers, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "Second", customers[0].Name)
}

func TestCustomerRepository_Search(t *testing.T) {
	repo := NewCustomerRepository(newTestDB(t))
	seedCustomer(t, repo, "Ana Diaz", "ana@example.com", "555-0100")
	seedCustomer(t, repo, "Bo Lee", "bo@example.com", "555-0200")

	found, err := repo.Search(context.Background(), "diaz")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Ana Diaz", found[0].Name)

	found, err = repo.Search(context.Background(), "0200")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bo Lee", found[0].Name)

	all, err := repo.Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCustomerRepository_SearchTreatsWildcardsLiterally(t *testing.T) {
	repo := NewCustomerRepository(newTestDB(t))
	seedCustomer(t, repo, "Ana Diaz", "ana@example.com", "555-0100")
	seedCustomer(t, repo, "Bo Lee", "bo_lee@example.com", "555-0200")

	found, err := repo.Search(context.Background(), "_")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bo Lee", found[0].Name)

	found, err = repo.Search(context.Background(), "%")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = repo.Search(context.Background(), `\`)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCustomerRepository_GetByEmail(t *testing.T) {
	repo := NewCustomerRepository(newTestDB(t))
	seeded := seedCustomer(t, repo, "Ana", "ana@example.com", "1")

	got, err := repo.GetByEmail(context.Background(), "Ana@Example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, seeded.ID, got.ID)

	missing, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCustomerRepository_UpdateAndDelete(t *testing.T) {
	repo := NewCustomerRepository(newTestDB(t))
	ctx := context.Background()
	seeded := seedCustomer(t, repo, "Ana", "ana@example.com", "1")

	updated, err := repo.Update(ctx, seeded.ID, model.CustomerPatch{Notes: strPtr("gate code 1234")})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "gate code 1234", *updated.Notes)
	assert.Equal(t, "Ana", updated.Name)

	deleted, err := repo.Delete(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, deleted.ID)

	got, err := repo.Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
