package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

func TestParseUserID(t *testing.T) {
	raw := uuid.NewString()
	parsed, err := id.ParseUserID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, parsed.String())
	assert.False(t, parsed.IsNil())

	for _, bad := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		_, err := id.ParseUserID(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", bad)
	}
}

func TestParseParcelID(t *testing.T) {
	parsed, err := id.ParseParcelID("  KAD-2026-0001  ")
	require.NoError(t, err)
	assert.Equal(t, id.ParcelID("KAD-2026-0001"), parsed)

	for _, bad := range []string{"", "ab", "has spaces", "slash/ref", "-leadingdash"} {
		_, err := id.ParseParcelID(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", bad)
	}
}

func TestUserIDMarshalsAsUUIDString(t *testing.T) {
	user := id.UserID(uuid.New())

	encoded, err := json.Marshal(user)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+user.String()+`"`, string(encoded))

	var decoded id.UserID
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, user, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &decoded))
}

func TestAccountForDerivesFromUser(t *testing.T) {
	user := id.UserID(uuid.New())
	assert.Equal(t, user.String(), id.AccountFor(user).String())
}
