package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	guest := Subject{}
	admin := Subject{UserID: 1, Role: "admin"}
	unknown := Subject{UserID: 2, Role: "PIRATE"}

	assert.True(t, p.Check(RequestAccessToken, guest))
	assert.True(t, p.Check(CreateAccessToken, guest))
	assert.False(t, p.Check(GeneratePermanentURLs, guest))

	assert.True(t, p.Check(GeneratePermanentURLs, admin))
	assert.True(t, p.Check(CreateAccessToken, admin))

	assert.False(t, p.Check(RequestAccessToken, unknown))
	assert.False(t, guest.Authenticated())
	assert.True(t, admin.Authenticated())
}
