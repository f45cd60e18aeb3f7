package socketio

import (
	"context"
	"testing"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/stretchr/testify/assert"
)

func TestDial_RejectsIncompleteURL(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	_, err := Dial(ctx, Config{URL: "localhost:3000"})
	assert.ErrorContains(t, err, "needs a scheme and a host")

	_, err = Dial(ctx, Config{URL: "http://[::1"})
	assert.ErrorContains(t, err, "failed to parse URL")
}
