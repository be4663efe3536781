// ABOUTME: Tests for contact lookup, creation and unauthorize handlers
// ABOUTME: Optional capabilities are supplied as interface overrides on the fake CRM
package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/harperreed/callbridge/connector"
	"github.com/harperreed/callbridge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindContact(t *testing.T) {
	f := newFixture(t)
	var got connector.FindContactRequest
	f.override(t, connector.CapFindContact, func(_ context.Context, req connector.FindContactRequest) (*connector.FindContactResult, error) {
		got = req
		if req.PhoneNumber == "+15551230000" {
			return &connector.FindContactResult{Contacts: []connector.Contact{{ID: "c-42", Name: "Ada Lovelace"}}}, nil
		}
		return &connector.FindContactResult{}, nil
	})
	h := NewContactHandlers(f.deps)
	ctx := context.Background()

	res, err := h.FindContact(ctx, FindContactInput{Platform: testPlatform, UserID: testUserID, PhoneNumber: "+15551230000", OverridingFormat: "(***) ***-****"})
	require.NoError(t, err)
	require.True(t, res.Successful)
	require.Len(t, res.Contacts, 1)
	assert.Equal(t, "Ada Lovelace", res.Contacts[0].Name)
	assert.Equal(t, "(***) ***-****", got.OverridingFormat)
	assert.Equal(t, "Basic key:secret", got.AuthHeader)

	res, err = h.FindContact(ctx, FindContactInput{Platform: testPlatform, UserID: testUserID, PhoneNumber: "+15550000000"})
	require.NoError(t, err)
	assert.False(t, res.Successful)
	assert.Equal(t, "Contact not found", res.ReturnMessage.Message)

	res, err = h.FindContact(ctx, FindContactInput{Platform: testPlatform, UserID: testUserID, PhoneNumber: "  "})
	require.NoError(t, err)
	assert.Equal(t, "Phone number is required", res.ReturnMessage.Message)
}

func TestFindContactNotImplemented(t *testing.T) {
	f := newFixture(t)
	h := NewContactHandlers(f.deps)

	res, err := h.FindContact(context.Background(), FindContactInput{Platform: testPlatform, UserID: testUserID, PhoneNumber: "+15551230000"})
	require.NoError(t, err)
	assert.False(t, res.Successful)
	assert.Equal(t, models.MessageTypeDanger, res.ReturnMessage.MessageType)
}

func TestFindContactWithName(t *testing.T) {
	f := newFixture(t)
	f.override(t, connector.CapFindContactWithName, func(_ context.Context, req connector.FindContactWithNameRequest) (*connector.FindContactResult, error) {
		return &connector.FindContactResult{Contacts: []connector.Contact{{ID: "c-1", Name: req.Name + " Lovelace"}}}, nil
	})
	h := NewContactHandlers(f.deps)

	res, err := h.FindContactWithName(context.Background(), FindContactWithNameInput{Platform: testPlatform, UserID: testUserID, Name: "Ada"})
	require.NoError(t, err)
	require.True(t, res.Successful)
	assert.Equal(t, "Ada Lovelace", res.Contacts[0].Name)

	res, err = h.FindContactWithName(context.Background(), FindContactWithNameInput{Platform: testPlatform, UserID: testUserID})
	require.NoError(t, err)
	assert.Equal(t, "Name is required", res.ReturnMessage.Message)
}

func TestCreateContact(t *testing.T) {
	f := newFixture(t)
	f.override(t, connector.CapCreateContact, func(_ context.Context, req connector.CreateContactRequest) (*connector.CreateContactResult, error) {
		if req.NewContactName == "Rate Limited" {
			return nil, connector.NewRemoteError(testPlatform, 429, nil)
		}
		return &connector.CreateContactResult{Contact: &connector.Contact{ID: "c-new", Name: req.NewContactName, Phone: req.PhoneNumber, IsNewContact: true}}, nil
	})
	h := NewContactHandlers(f.deps)
	ctx := context.Background()

	res, err := h.CreateContact(ctx, CreateContactInput{Platform: testPlatform, UserID: testUserID, PhoneNumber: "+15551230000", NewContactName: "Grace Hopper"})
	require.NoError(t, err)
	require.True(t, res.Successful)
	require.Len(t, res.Contacts, 1)
	assert.True(t, res.Contacts[0].IsNewContact)
	assert.Equal(t, "+15551230000", res.Contacts[0].Phone)

	res, err = h.CreateContact(ctx, CreateContactInput{Platform: testPlatform, UserID: testUserID, NewContactName: "Rate Limited"})
	require.NoError(t, err)
	assert.False(t, res.Successful)
	assert.Equal(t, "testcrm rate limit reached. Please try again in 30 seconds.", res.ReturnMessage.Message)

	res, err = h.CreateContact(ctx, CreateContactInput{Platform: testPlatform, UserID: testUserID})
	require.NoError(t, err)
	assert.Equal(t, "Contact name is required", res.ReturnMessage.Message)
}

func TestUnauthorize(t *testing.T) {
	f := newFixture(t)
	var revoked *models.User
	f.override(t, connector.CapUnAuthorize, func(_ context.Context, req connector.UnAuthorizeRequest) (*connector.UnAuthorizeResult, error) {
		revoked = req.User
		return nil, nil
	})
	h := NewAuthHandlers(f.deps)
	ctx := context.Background()

	res, err := h.Unauthorize(ctx, UnauthorizeInput{Platform: testPlatform, UserID: testUserID})
	require.NoError(t, err)
	require.True(t, res.Successful)
	assert.Equal(t, "Logged out of testcrm", res.ReturnMessage.Message)
	require.NotNil(t, revoked)
	assert.Equal(t, testUserID, revoked.ID)

	user, err := f.users.Get(ctx, testUserID)
	require.NoError(t, err)
	assert.Nil(t, user)

	res, err = h.Unauthorize(ctx, UnauthorizeInput{Platform: testPlatform, UserID: testUserID})
	require.NoError(t, err)
	assert.Equal(t, "User not found", res.ReturnMessage.Message)
}

func TestUnauthorizeRevokeFailureKeepsUser(t *testing.T) {
	f := newFixture(t)
	f.override(t, connector.CapUnAuthorize, func(context.Context, connector.UnAuthorizeRequest) (*connector.UnAuthorizeResult, error) {
		return nil, connector.NewRemoteError(testPlatform, 503, errors.New("down"))
	})
	h := NewAuthHandlers(f.deps)
	ctx := context.Background()

	res, err := h.Unauthorize(ctx, UnauthorizeInput{Platform: testPlatform, UserID: testUserID})
	require.NoError(t, err)
	assert.False(t, res.Successful)

	user, err := f.users.Get(ctx, testUserID)
	require.NoError(t, err)
	assert.NotNil(t, user)
}
