package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/clinicsync/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestDecodeError(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		cause := errors.New("unexpected end of JSON input")
		err := pkgerrors.NewMalformedFrame("", "unmarshal envelope", cause)
		assert.True(t, errors.Is(err, pkgerrors.ErrMalformedFrame))
		assert.False(t, errors.Is(err, pkgerrors.ErrUnknownKind))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "decode malformed_frame: unmarshal envelope", err.Error())
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := pkgerrors.NewUnknownKind("lab.resultReady")
		assert.True(t, errors.Is(err, pkgerrors.ErrUnknownKind))
		assert.Contains(t, err.Error(), `"lab.resultReady"`)
	})

	t.Run("wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("frame 12: %w", pkgerrors.NewUnknownKind("x"))
		assert.True(t, pkgerrors.IsDecodeError(wrapped))

		var de *pkgerrors.DecodeError
		require.True(t, errors.As(wrapped, &de))
		assert.Equal(t, pkgerrors.UnknownKind, de.Reason)
	})
}

func TestNotFoundError(t *testing.T) {
	err := pkgerrors.NewNotFoundError("patient", "p-17")
	assert.Equal(t, "patient with ID p-17 not found", err.Error())
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(errors.Join(errors.New("failed"), err)))
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Field: "patient_id", Message: "cannot be empty"}
		assert.Equal(t, "validation failed for field patient_id: cannot be empty", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid configuration"}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
	})
}

func TestTransportError(t *testing.T) {
	err := pkgerrors.WrapTransport("dial", "wss://clinic.local/ws", pkgerrors.ErrNotConnected)
	assert.Equal(t, "transport dial wss://clinic.local/ws: not connected", err.Error())
	assert.True(t, pkgerrors.IsNotConnected(err))
	assert.Nil(t, pkgerrors.WrapTransport("dial", "", nil))
}

func TestConfigError(t *testing.T) {
	cause := errors.New("must be positive")
	err := pkgerrors.NewConfigError("reconnect", "max_attempts", cause)
	assert.Equal(t, "configuration error in reconnect: max_attempts", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapParse(t *testing.T) {
	assert.Nil(t, pkgerrors.WrapParse("yaml", "demo.yaml", nil))

	err := pkgerrors.WrapParse("yaml", "demo.yaml", errors.New("bad indent"))
	assert.Equal(t, "parse error in yaml file demo.yaml: bad indent", err.Error())
}
