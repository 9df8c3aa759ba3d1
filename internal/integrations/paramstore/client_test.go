package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
}

func (f *fakeAPI) GetParameter(_ context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("/clinic-agent/model"), Value: strPtr("meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo"), Type: types.ParameterTypeString,
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "/clinic-agent/model")
	require.NoError(t, err)
	require.Equal(t, "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo", v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

// ---------------------------------------------------------------------------
// GetToken
// ---------------------------------------------------------------------------

func newTokenClient(t *testing.T, value *string, err error) *Client {
	t.Helper()
	api := &fakeAPI{getErr: err, getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: value}}}
	client, newErr := New(api)
	require.NoError(t, newErr)
	return client
}

func TestGetToken_JSONToken(t *testing.T) {
	client := newTokenClient(t, strPtr(`{"token":" tg-123 "}`), nil)
	tok, err := client.GetToken(context.Background(), "/clinic-agent/together-api-key")
	require.NoError(t, err)
	require.Equal(t, "tg-123", tok)
}

func TestGetToken_MissingTokenField(t *testing.T) {
	client := newTokenClient(t, strPtr(`{"other":"value"}`), nil)
	_, err := client.GetToken(context.Background(), "/clinic-agent/together-api-key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestGetToken_MalformedJSON(t *testing.T) {
	client := newTokenClient(t, strPtr(`{"broken`), nil)
	_, err := client.GetToken(context.Background(), "/clinic-agent/together-api-key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestGetToken_APIError(t *testing.T) {
	client := newTokenClient(t, nil, errors.New("ssm unavailable"))
	_, err := client.GetToken(context.Background(), "/clinic-agent/together-api-key")
	require.ErrorContains(t, err, "ssm unavailable")
}
