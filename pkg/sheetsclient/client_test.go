package sheetsclient

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block))
}

// tokenServer fakes Google's token endpoint and counts exchanges.
func tokenServer(t *testing.T, exchanges *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			t.Errorf("unexpected grant type: %q", got)
		}
		if r.PostForm.Get("assertion") == "" {
			t.Error("expected a signed assertion")
		}
		*exchanges++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"ya29.test-token","expires_in":3600,"token_type":"Bearer"}`))
	}))
}

func newTestClient(t *testing.T, pemKey string, tokenURL, baseURL string) *Client {
	t.Helper()
	client, err := NewClient("svc@project.iam.gserviceaccount.com", pemKey)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	client.TokenURL = tokenURL
	client.BaseURL = baseURL
	return client
}

func TestNewClient_NormalizesEscapedNewlines(t *testing.T) {
	pemKey := testKeyPEM(t)
	escaped := strings.ReplaceAll(pemKey, "\n", `\n`)
	if _, err := NewClient("svc@project.iam.gserviceaccount.com", escaped); err != nil {
		t.Fatalf("expected the escaped key to parse, got %v", err)
	}
}

func TestNewClient_RejectsGarbageKeys(t *testing.T) {
	if _, err := NewClient("svc@project.iam.gserviceaccount.com", "not a pem key"); err == nil {
		t.Fatal("expected an error for an unparsable key")
	}
}

func TestGetValues_ExchangesTokenAndRendersCells(t *testing.T) {
	exchanges := 0
	tokens := tokenServer(t, &exchanges)
	defer tokens.Close()

	var gotAuth, gotPath string
	sheets := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"range":"Student Registrations!A1:P1","values":[["Timestamp","Surname",42]]}`))
	}))
	defer sheets.Close()

	client := newTestClient(t, testKeyPEM(t), tokens.URL, sheets.URL)
	rows, err := client.GetValues(context.Background(), "sheet-id", "Student Registrations!A1:P1")
	if err != nil {
		t.Fatalf("GetValues returned error: %v", err)
	}
	if gotAuth != "Bearer ya29.test-token" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
	if !strings.HasPrefix(gotPath, "/sheet-id/values/") {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if len(rows) != 1 || len(rows[0]) != 3 {
		t.Fatalf("unexpected rows: %v", rows)
	}
	// Non-string cells render to strings.
	if rows[0][2] != "42" {
		t.Fatalf("expected the numeric cell rendered as a string, got %q", rows[0][2])
	}
}

func TestAppendRow_PostsAValueRange(t *testing.T) {
	exchanges := 0
	tokens := tokenServer(t, &exchanges)
	defer tokens.Close()

	var gotQuery string
	var gotBody struct {
		Values [][]interface{} `json:"values"`
	}
	sheets := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode append body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer sheets.Close()

	client := newTestClient(t, testKeyPEM(t), tokens.URL, sheets.URL)
	err := client.AppendRow(context.Background(), "sheet-id", "Student Registrations!A:P", []string{"2024-03-01T12:00:00Z", "Okafor"})
	if err != nil {
		t.Fatalf("AppendRow returned error: %v", err)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") {
		t.Fatalf("expected USER_ENTERED input option, got query %q", gotQuery)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 2 {
		t.Fatalf("unexpected append body: %v", gotBody.Values)
	}
	if gotBody.Values[0][1] != "Okafor" {
		t.Fatalf("unexpected cell: %v", gotBody.Values[0][1])
	}
}

func TestToken_IsCachedAcrossCalls(t *testing.T) {
	exchanges := 0
	tokens := tokenServer(t, &exchanges)
	defer tokens.Close()

	sheets := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer sheets.Close()

	client := newTestClient(t, testKeyPEM(t), tokens.URL, sheets.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.GetValues(context.Background(), "sheet-id", "A1:B1"); err != nil {
			t.Fatalf("GetValues %d returned error: %v", i, err)
		}
	}
	if exchanges != 1 {
		t.Fatalf("expected one token exchange, got %d", exchanges)
	}
}

func TestGetValues_APIErrorIsDecoded(t *testing.T) {
	exchanges := 0
	tokens := tokenServer(t, &exchanges)
	defer tokens.Close()

	sheets := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`))
	}))
	defer sheets.Close()

	client := newTestClient(t, testKeyPEM(t), tokens.URL, sheets.URL)
	_, err := client.GetValues(context.Background(), "sheet-id", "A1:B1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "PERMISSION_DENIED") {
		t.Fatalf("expected the api status in the error, got %v", err)
	}
}

func TestToken_ExchangeFailureSurfaces(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer tokens.Close()

	client := newTestClient(t, testKeyPEM(t), tokens.URL, "http://127.0.0.1:0")
	if _, err := client.GetValues(context.Background(), "sheet-id", "A1:B1"); err == nil {
		t.Fatal("expected the token failure to surface")
	}
}
