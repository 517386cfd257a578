package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxpkg "github.com/stupiduntilnot/kontempo/internal/context"
	"github.com/stupiduntilnot/kontempo/internal/control"
	"github.com/stupiduntilnot/kontempo/internal/dummy"
)

func newTestServer(t *testing.T, script string, opts Options) (*httptest.Server, *dummy.Provider) {
	t.Helper()
	provider, err := dummy.NewProvider("dummy", script)
	require.NoError(t, err)
	server := httptest.NewServer(NewHandler(NewService(provider, opts)))
	t.Cleanup(server.Close)
	return server, provider
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func lastUserPrompt(t *testing.T, p *dummy.Provider) string {
	t.Helper()
	msgs := p.LastMessages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, ctxpkg.RoleUser, last.Role)
	return last.Content
}

const chatBody = `{
  "query": "¿Cuántos clientes activos tengo?",
  "context": {
    "buyers": [
      {"display_name": "A", "approval_status": "active", "credit": {"credit_limit": 100000, "credit_used": 50000}},
      {"display_name": "B", "approval_status": "pending"}
    ],
    "orders": [{"amount": 1000, "payment_status": "due"}],
    "payouts": [{"amount": 45000}],
    "payment_links": [{"cart_total": 25000}]
  },
  "user": {"role": "viewer"},
  "conversation_history": [
    {"role": "user", "content": "hola"},
    {"role": "assistant", "content": "¡Hola!"},
    {"role": "user", "content": "¿Cuántos clientes activos tengo?"}
  ]
}`

func TestChat_Success(t *testing.T) {
	server, provider := newTestServer(t, "msg:Tienes 1 cliente activo.", testOptions())

	resp, body := post(t, server.URL+"/chat", chatBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	_, err := uuid.Parse(resp.Header.Get("X-Request-ID"))
	assert.NoError(t, err, "X-Request-ID should be a UUID")

	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Tienes 1 cliente activo.", body["response"])
	assert.Equal(t, "Kontempo AI", body["model"])
	assert.Equal(t, float64(fixedNow.Unix()), body["timestamp"])
	assert.NotContains(t, body, "error")

	msgs := provider.LastMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, ctxpkg.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hola", msgs[1].Content)

	prompt := lastUserPrompt(t, provider)
	assert.True(t, strings.HasPrefix(prompt, "ROL DEL USUARIO: viewer\n"))
	assert.Contains(t, prompt, "- Clientes con línea de crédito (límite > 0): 1")
	assert.Contains(t, prompt, "- Crédito utilizado: $50,000.00 (50.0% utilización)")
	assert.Contains(t, prompt, "- Monto en riesgo: $1,000.00")
}

func TestChat_ReusesClientRequestID(t *testing.T) {
	server, _ := newTestServer(t, "ok", testOptions())

	req, err := http.NewRequest(http.MethodPost, server.URL+"/chat", strings.NewReader(`{"query":"hola"}`))
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "client-trace-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "client-trace-1", resp.Header.Get("X-Request-ID"))
}

func TestChat_MethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t, "ok", testOptions())

	resp, err := http.Get(server.URL + "/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestChat_BadBody(t *testing.T) {
	server, provider := newTestServer(t, "ok", testOptions())

	for _, body := range []string{"not json", `["a list"]`, ""} {
		resp, decoded := post(t, server.URL+"/chat", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)
		assert.Equal(t, "error", decoded["status"])
		assert.Contains(t, decoded["error"], "invalid request body")
	}
	assert.Equal(t, 0, provider.Calls())
}

func TestChat_MalformedContextStillAnswers(t *testing.T) {
	server, provider := newTestServer(t, "msg:No pude leer tus datos.", testOptions())

	resp, body := post(t, server.URL+"/chat", `{
		"query": 42,
		"context": {"buyers": [null, {"display_name": "ok"}]},
		"user": "admin",
		"conversation_history": "nope"
	}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])

	prompt := lastUserPrompt(t, provider)
	assert.Contains(t, prompt, "DATOS DEL MERCHANT:\nError summarizing data: buyers[0]: ")
	assert.True(t, strings.HasPrefix(prompt, "ROL DEL USUARIO: admin\n"))
	assert.True(t, strings.HasSuffix(prompt, "PREGUNTA DEL USUARIO: 42"))
	assert.Len(t, provider.LastMessages(), 2)
}

func TestChat_ModelFailureIsBadGateway(t *testing.T) {
	opts := testOptions()
	opts.Retry.MaxRetries = 0
	server, _ := newTestServer(t, "err", opts)

	resp, body := post(t, server.URL+"/chat", chatBody)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error"], "dummy provider error")
	assert.NotContains(t, body, "response")
}

func TestChat_OpenCircuitIsUnavailable(t *testing.T) {
	opts := testOptions()
	opts.Retry.MaxRetries = 0
	opts.Circuit = control.NewCircuitBreaker(1, time.Hour)
	server, provider := newTestServer(t, "err", opts)

	resp, _ := post(t, server.URL+"/chat", chatBody)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, body := post(t, server.URL+"/chat", chatBody)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body["error"], "circuit open")
	assert.Equal(t, 1, provider.Calls())

	health, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	var status map[string]string
	require.NoError(t, json.NewDecoder(health.Body).Decode(&status))
	assert.Equal(t, map[string]string{"status": "ok", "circuit": "open"}, status)
}

func TestTest_UsesMockDataset(t *testing.T) {
	server, provider := newTestServer(t, "msg:Va bien.", testOptions())

	resp, body := post(t, server.URL+"/test", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Va bien.", body["response"])

	prompt := lastUserPrompt(t, provider)
	assert.True(t, strings.HasPrefix(prompt, "ROL DEL USUARIO: admin\n"))
	assert.Contains(t, prompt, "- Test Client | límite $100,000.00")
	assert.Contains(t, prompt, "- Ingresos totales (todos los payouts): $45,000.00")
	assert.Contains(t, prompt, "- Valor del pipeline: $25,000.00")
	assert.True(t, strings.HasSuffix(prompt, "PREGUNTA DEL USUARIO: ¿Cómo va mi programa de crédito?"))
}

func TestTest_TakesQueryRoleAndHistory(t *testing.T) {
	server, provider := newTestServer(t, "ok", testOptions())

	resp, _ := post(t, server.URL+"/test", `{
		"query": "¿Y el riesgo?",
		"role": "finance",
		"conversation_history": [{"role": "user", "content": "antes"}, {"role": "user", "content": "¿Y el riesgo?"}]
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msgs := provider.LastMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "antes", msgs[1].Content)
	prompt := msgs[2].Content
	assert.True(t, strings.HasPrefix(prompt, "ROL DEL USUARIO: finance\n"))
	assert.True(t, strings.HasSuffix(prompt, "PREGUNTA DEL USUARIO: ¿Y el riesgo?"))
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, "ok", testOptions())

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "closed", status["circuit"])

	wrong, err := http.Post(server.URL+"/healthz", "application/json", nil)
	require.NoError(t, err)
	wrong.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, wrong.StatusCode)
}

func TestEnvelope_MarshalShapes(t *testing.T) {
	data, err := json.Marshal(Envelope{Response: "", Timestamp: 1, Model: "m", Status: StatusSuccess})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"","timestamp":1,"model":"m","status":"success"}`, string(data))

	data, err = json.Marshal(Envelope{Error: "boom", Status: StatusError})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"boom","status":"error"}`, string(data))
}
