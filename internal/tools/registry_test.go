package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/zkagent/internal/infra/chain"
)

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry(nil)
	tool := &Tool{
		Definition: Definition{Name: "echo"},
		Handler:    func(ctx context.Context, input json.RawMessage) (any, error) { return nil, nil },
	}
	require.NoError(t, r.Register(tool))
	assert.Error(t, r.Register(tool))
	assert.Error(t, r.Register(&Tool{Definition: Definition{Name: "nohandler"}}))
}

func TestRegistry_InvokeSuccess(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&Tool{
		Definition: Definition{Name: "echo"},
		Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
			var in map[string]any
			if err := decode(input, &in); err != nil {
				return nil, err
			}
			return in, nil
		},
	}))

	res := r.Invoke(context.Background(), "echo", json.RawMessage(`{"x":1}`))
	assert.True(t, res.OK)
	assert.Nil(t, res.Error)
	assert.Equal(t, "echo", res.Tool)
	_, err := uuid.Parse(res.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(1)}, res.Data)

	// Empty input is treated as an empty object.
	res = r.Invoke(context.Background(), "echo", nil)
	assert.True(t, res.OK)
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	res := NewRegistry(nil).Invoke(context.Background(), "nope", nil)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeUnknownTool, res.Error.Code)
}

func TestRegistry_InvokeMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"tool error passes through", invalidArgument("bad"), CodeInvalidArgument},
		{"uninitialized agent", chain.ErrNotInitialized, CodeNotInitialized},
		{"shut down agent", errors.Join(errors.New("register failed"), chain.ErrShutdown), CodeNotInitialized},
		{"anything else is upstream", errors.New("connection refused"), CodeUpstreamFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry(nil)
			require.NoError(t, r.Register(&Tool{
				Definition: Definition{Name: "fail"},
				Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
					return nil, tc.err
				},
			}))
			res := r.Invoke(context.Background(), "fail", nil)
			assert.False(t, res.OK)
			require.NotNil(t, res.Error)
			assert.Equal(t, tc.code, res.Error.Code)
			assert.Nil(t, res.Data)
		})
	}
}

func TestRegistry_InvokeRecoversPanics(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&Tool{
		Definition: Definition{Name: "explode"},
		Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
			panic("kaboom")
		},
	}))

	res := r.Invoke(context.Background(), "explode", nil)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInternal, res.Error.Code)
	assert.Contains(t, res.Error.Message, "kaboom")
}

func TestResult_JSONShape(t *testing.T) {
	data, err := json.Marshal(Result{
		RequestID: "id",
		Tool:      "t",
		Error:     &ToolError{Code: CodeTxFailed, Message: "rejected", Cause: errors.New("hidden")},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"request_id":"id","tool":"t","ok":false,"error":{"code":"TX_FAILED","message":"rejected"}}`, string(data))
}

func TestToolError_Error(t *testing.T) {
	assert.Equal(t, "INVALID_ARGUMENT: amount is required", invalidArgument("amount is required").Error())
	assert.Equal(t, "X", (&ToolError{Code: "X"}).Error())
	assert.Equal(t, "", (*ToolError)(nil).Error())
}
