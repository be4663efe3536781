// ABOUTME: Tests for local CRM contact and interaction storage
// ABOUTME: Verifies phone normalization matching, name search and interaction rewrites
package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/callbridge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, "15551234567", PhoneDigits("+1 (555) 123-4567"))
	assert.Equal(t, "", PhoneDigits("ext."))
}

func TestContactRepositoryFindByPhone(t *testing.T) {
	repo := NewContactRepository(setupTestDB(t))
	ctx := context.Background()

	alice := &models.Contact{Name: "Alice Smith", Phone: "(555) 123-4567"}
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.Create(ctx, &models.Contact{Name: "Bob Jones", Phone: "+44 20 7946 0958"}))

	found, err := repo.FindByPhone(ctx, "+1 555 123 4567", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID, found[0].ID)

	found, err = repo.FindByPhone(ctx, "5551234567", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = repo.FindByPhone(ctx, "+15550000000", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = repo.FindByPhone(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestContactRepositoryFindByName(t *testing.T) {
	repo := NewContactRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Contact{Name: "Alice Smith"}))
	require.NoError(t, repo.Create(ctx, &models.Contact{Name: "Alicia Keys"}))
	require.NoError(t, repo.Create(ctx, &models.Contact{Name: "Bob Jones"}))

	found, err := repo.FindByName(ctx, "ali", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Alice Smith", found[0].Name)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInteractionRepository(t *testing.T) {
	db := setupTestDB(t)
	contacts := NewContactRepository(db)
	interactions := NewInteractionRepository(db)
	ctx := context.Background()

	c := &models.Contact{Name: "Alice"}
	require.NoError(t, contacts.Create(ctx, c))

	in := &models.InteractionLog{ContactID: c.ID, InteractionType: models.InteractionCall, Subject: "Inbound call", Body: "- Note: hi\n"}
	require.NoError(t, interactions.Create(ctx, in))
	assert.NotEqual(t, uuid.Nil, in.ID)

	require.NoError(t, interactions.Update(ctx, in.ID, "Inbound call", "- Note: bye\n"))
	got, err := interactions.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "- Note: bye\n", got.Body)

	assert.ErrorIs(t, interactions.Update(ctx, uuid.New(), "x", "y"), ErrNotFound)

	err = interactions.Create(ctx, &models.InteractionLog{ContactID: c.ID, InteractionType: "meeting"})
	assert.Error(t, err, "interaction type is constrained")

	require.NoError(t, contacts.TouchLastContacted(ctx, c.ID, time.Now()))
	list, err := interactions.ListByContact(ctx, c.ID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, contacts.Delete(ctx, c.ID))
	gone, err := interactions.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Nil(t, gone, "interactions cascade with their contact")
}

func TestProxyConfigRepository(t *testing.T) {
	repo := NewProxyConfigRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.ProxyConfig{ID: "p1", Config: json.RawMessage(`{"logFormat":"html"}`)}))
	require.NoError(t, repo.Save(ctx, &models.ProxyConfig{ID: "p1", Config: json.RawMessage(`{"logFormat":"markdown"}`)}))
	assert.Error(t, repo.Save(ctx, &models.ProxyConfig{ID: "p2", Config: json.RawMessage(`{`)}))

	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"logFormat":"markdown"}`, string(got.Config))

	none, err := repo.Get(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)
}
