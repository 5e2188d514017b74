package apidoc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/reportal/model"
)

func mustLoad(t *testing.T) *Document {
	t.Helper()
	d, err := Load(context.Background())
	require.NoError(t, err)
	return d
}

func TestLoad(t *testing.T) {
	d := mustLoad(t)

	op, ok := d.Operation("submitForm")
	require.True(t, ok)
	require.Equal(t, http.MethodPost, op.Method)
	require.Equal(t, "/ui/forms/{categoryId}/submissions", op.Path)

	ops := d.Operations()
	require.NotEmpty(t, ops)
	for i := 1; i < len(ops); i++ {
		prev, cur := ops[i-1], ops[i]
		require.True(t, prev.Path < cur.Path || (prev.Path == cur.Path && prev.Method < cur.Method),
			"%s %s sorted after %s %s", cur.Method, cur.Path, prev.Method, prev.Path)
	}
}

func TestLoad_responseDescriptions(t *testing.T) {
	d := mustLoad(t)

	for path, item := range d.doc.Paths.Map() {
		for method, op := range item.Operations() {
			for status, resp := range op.Responses.Map() {
				require.NotNil(t, resp.Value, "%s %s %s", method, path, status)
				require.NotNil(t, resp.Value.Description, "%s %s %s", method, path, status)
				require.NotEmpty(t, *resp.Value.Description, "%s %s %s", method, path, status)
			}
		}
	}

	tests := []struct {
		path string
		want string
	}{
		{"/ui/ready", "Ready; possibly degraded"},
		{"/ui/locations/hierarchy", "Hierarchy; stale when the location table is unreachable"},
	}
	for _, tt := range tests {
		item := d.doc.Paths.Value(tt.path)
		require.NotNil(t, item, tt.path)
		resp := item.GetOperation(http.MethodGet).Responses.Value("200")
		require.NotNil(t, resp, tt.path)
		require.Equal(t, tt.want, *resp.Value.Description)
	}
}

func TestValidateBody(t *testing.T) {
	d := mustLoad(t)

	tests := []struct {
		name  string
		op    string
		body  any
		field string
	}{
		{"valid submission", "submitForm", map[string]any{"values": map[string]any{"amount": "3"}}, ""},
		{"null values", "submitForm", map[string]any{"values": nil}, ""},
		{"missing values", "submitForm", map[string]any{}, "values"},
		{"body not an object", "submitForm", []any{}, "body"},
		{"option value not a string", "saveBuilder", map[string]any{
			"fields": []any{map[string]any{
				"id": "office", "kind": "dropdown",
				"options": []any{map[string]any{"label": "Gulu", "value": 3.0}},
			}},
		}, "fields.0.options.0.value"},
		{"no body schema", "listCategories", "anything", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.ValidateBody(tt.op, tt.body)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.True(t, model.IsCode(err, model.ErrValidationError), "%v", err)
			var env *model.ErrorEnvelope
			require.ErrorAs(t, err, &env)
			require.Equal(t, tt.field, env.Details[0].Field)
		})
	}

	require.Error(t, d.ValidateBody("nope", nil))
}

func TestHandler(t *testing.T) {
	w := httptest.NewRecorder()
	mustLoad(t).Handler()(w, httptest.NewRequest("GET", "/ui/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), `"operationId":"submitForm"`)
}
