package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/ordersync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := pkgerrors.NewNotFoundError("record", "42")
		assert.Equal(t, "record with ID 42 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		wrapped := fmt.Errorf("claim: %w", pkgerrors.NewNotFoundError("record", "7"))
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("timeout", "5s", "must be between 10s and 20s")
		assert.Equal(t, "validation failed for field timeout: must be between 10s and 20s", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "empty key"}
		assert.Equal(t, "validation failed: empty key", err.Error())
	})
}

func TestUpstreamError(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		unauthorized bool
	}{
		{"bad request", 400, false},
		{"unauthorized", 401, true},
		{"forbidden", 403, true},
		{"server error", 502, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewUpstreamError("https://carrier.test/orders", tt.status, `{"error":"nope"}`)
			assert.True(t, pkgerrors.IsUpstreamRejected(err))
			assert.True(t, pkgerrors.IsFetchError(err))
			assert.Equal(t, tt.unauthorized, errors.Is(err, pkgerrors.ErrUnauthorized))
			assert.Contains(t, err.Error(), fmt.Sprintf("status %d", tt.status))
		})
	}

	t.Run("long body is truncated", func(t *testing.T) {
		body := make([]byte, 1000)
		for i := range body {
			body[i] = 'x'
		}
		err := pkgerrors.NewUpstreamError("u", 500, string(body))
		assert.Less(t, len(err.Error()), 400)
		assert.Len(t, err.Body, 1000)
	})
}

func TestUnavailableError(t *testing.T) {
	base := errors.New("connection refused")
	err := pkgerrors.WrapUnavailable("https://carrier.test", base)

	assert.True(t, pkgerrors.IsUnavailable(err))
	assert.True(t, errors.Is(err, base))
	assert.False(t, pkgerrors.IsTimeout(err))
	assert.Nil(t, pkgerrors.WrapUnavailable("x", nil))
}

func TestMalformedResponseError(t *testing.T) {
	err := pkgerrors.NewMalformedResponseError("https://carrier.test", "unrecognized envelope", nil)
	assert.True(t, pkgerrors.IsMalformedResponse(err))
	assert.True(t, pkgerrors.IsFetchError(err))
	assert.Contains(t, err.Error(), "unrecognized envelope")
}

func TestTimeoutError(t *testing.T) {
	err := pkgerrors.NewTimeoutError("fetch open orders", "15s", "deadline exceeded")
	assert.True(t, pkgerrors.IsTimeout(err))
	assert.True(t, pkgerrors.IsFetchError(err))
	assert.Contains(t, err.Error(), "after 15s")
}

func TestConflictError(t *testing.T) {
	err := pkgerrors.NewConflictError(12, 3, 4)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.False(t, pkgerrors.IsFetchError(err))
	assert.Equal(t, "record 12 changed concurrently (expected version 3, found 4)", err.Error())

	var conflict *pkgerrors.ConflictError
	require.True(t, errors.As(fmt.Errorf("save: %w", err), &conflict))
	assert.Equal(t, int64(4), conflict.Actual)
}

func TestSyncError(t *testing.T) {
	t.Run("with cycle id", func(t *testing.T) {
		base := pkgerrors.WrapUnavailable("u", errors.New("refused"))
		err := pkgerrors.NewSyncError("abc", "fetch", base)
		assert.Contains(t, err.Error(), "abc")
		assert.Contains(t, err.Error(), "fetch")
		assert.True(t, pkgerrors.IsUnavailable(err))
	})

	t.Run("without cycle id", func(t *testing.T) {
		err := pkgerrors.NewSyncError("", "save", errors.New("disk full"))
		assert.Equal(t, "sync failed during save: disk full", err.Error())
	})
}

func TestIOError(t *testing.T) {
	t.Run("unwrap", func(t *testing.T) {
		baseErr := errors.New("disk full")
		err := pkgerrors.NewIOError("write", "/data/records.yaml", baseErr)
		assert.Equal(t, baseErr, err.Unwrap())
		assert.Contains(t, err.Error(), "/data/records.yaml")
	})

	t.Run("wrap helper", func(t *testing.T) {
		err := pkgerrors.WrapIO("rename", "/tmp/x", errors.New("cross-device link"))
		ioErr, ok := err.(*pkgerrors.IOError)
		require.True(t, ok)
		assert.Equal(t, "rename", ioErr.Operation)
		assert.Nil(t, pkgerrors.WrapIO("rename", "/tmp/x", nil))
	})
}

func TestParseError(t *testing.T) {
	t.Run("with file", func(t *testing.T) {
		err := pkgerrors.WrapParse("yaml", "catalog.yaml", errors.New("bad indent"))
		assert.Equal(t, "parse error in yaml file catalog.yaml: bad indent", err.Error())
	})

	t.Run("format only", func(t *testing.T) {
		err := &pkgerrors.ParseError{Format: "json", Message: "unexpected EOF"}
		assert.Equal(t, "json parse error: unexpected EOF", err.Error())
	})
}

func TestResourceError(t *testing.T) {
	err := pkgerrors.WrapResource("load", "records", "", pkgerrors.NewIOError("read", "f", errors.New("eof")))
	resErr, ok := err.(*pkgerrors.ResourceError)
	require.True(t, ok)
	assert.Equal(t, "failed to load records: IO error during read of f: eof", resErr.Error())
	assert.Nil(t, pkgerrors.WrapResource("load", "records", "", nil))
}

func TestConfigError(t *testing.T) {
	base := errors.New("missing")
	err := pkgerrors.NewConfigError("carrier", "base url required", base)
	assert.Equal(t, "configuration error in carrier: base url required", err.Error())
	assert.ErrorIs(t, err, base)
}
