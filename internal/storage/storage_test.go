package storage

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

func newTestKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func TestNewKeySigner(t *testing.T) {
	_, pemKey := newTestKey(t)

	if _, err := NewKeySigner("sa@p.iam.gserviceaccount.com", pemKey); err != nil {
		t.Errorf("NewKeySigner(PKCS8) error = %v", err)
	}
	if _, err := NewKeySigner("sa@p.iam.gserviceaccount.com", "not a key"); err == nil {
		t.Error("NewKeySigner(garbage) should fail")
	}
}

// recordingSigner keeps the last payload it signed.
type recordingSigner struct {
	Signer
	payload []byte
}

func (r *recordingSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	r.payload = payload
	return r.Signer.Sign(ctx, payload)
}

func TestSignedURL(t *testing.T) {
	key, pemKey := newTestKey(t)
	keySigner, err := NewKeySigner("pipeline@docs-project.iam.gserviceaccount.com", pemKey)
	if err != nil {
		t.Fatalf("NewKeySigner() error = %v", err)
	}
	signer := &recordingSigner{Signer: keySigner}

	store, err := NewGCS(GCSConfig{
		Service: &gcs.Service{},
		Bucket:  "docs",
		Prefix:  "uploads/",
		Signer:  signer,
	})
	if err != nil {
		t.Fatalf("NewGCS() error = %v", err)
	}

	signed, err := store.SignedURL(context.Background(), "d1 report.txt", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignedURL() error = %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("signed URL does not parse: %v", err)
	}
	if u.Host != "storage.googleapis.com" {
		t.Errorf("host = %q", u.Host)
	}
	if u.Path != "/docs/uploads/d1 report.txt" {
		t.Errorf("path = %q, want /docs/uploads/d1 report.txt", u.Path)
	}

	q := u.Query()
	want := map[string]string{
		"X-Goog-Algorithm":     "GOOG4-RSA-SHA256",
		"X-Goog-SignedHeaders": "host",
	}
	got := map[string]string{}
	for k := range want {
		got[k] = q.Get(k)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
	credential := q.Get("X-Goog-Credential")
	if !strings.HasPrefix(credential, "pipeline@docs-project.iam.gserviceaccount.com/") ||
		!strings.HasSuffix(credential, "/auto/storage/goog4_request") {
		t.Errorf("X-Goog-Credential = %q", credential)
	}
	if expires := q.Get("X-Goog-Expires"); expires != "900" && expires != "899" {
		t.Errorf("X-Goog-Expires = %q, want 900", expires)
	}

	// The signature covers the string to sign passed through the signer.
	if !bytes.HasPrefix(signer.payload, []byte("GOOG4-RSA-SHA256\n"+q.Get("X-Goog-Date")+"\n")) {
		t.Errorf("signed payload does not start with the V4 header:\n%s", signer.payload)
	}
	sig, err := hex.DecodeString(q.Get("X-Goog-Signature"))
	if err != nil {
		t.Fatalf("signature is not hex: %v", err)
	}
	digest := sha256.Sum256(signer.payload)
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

func TestSignedURL_SignerError(t *testing.T) {
	store, _ := NewGCS(GCSConfig{Service: &gcs.Service{}, Bucket: "docs", Signer: failingSigner{}})
	_, err := store.SignedURL(context.Background(), "k", time.Minute)
	if err == nil || !strings.Contains(err.Error(), "iam denied") {
		t.Errorf("SignedURL() error = %v, want the signer error", err)
	}
}

type failingSigner struct{}

func (failingSigner) Email() string { return "sa@p.iam.gserviceaccount.com" }

func (failingSigner) Sign(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("iam denied")
}

func TestSignedURL_Expiry(t *testing.T) {
	_, pemKey := newTestKey(t)
	signer, _ := NewKeySigner("sa@p.iam.gserviceaccount.com", pemKey)
	store, _ := NewGCS(GCSConfig{Service: &gcs.Service{}, Bucket: "docs", Signer: signer})

	for _, expiry := range []time.Duration{0, 8 * 24 * time.Hour} {
		if _, err := store.SignedURL(context.Background(), "k", expiry); err == nil {
			t.Errorf("SignedURL(expiry=%s) should fail", expiry)
		}
	}
}

func TestSignedURL_NoSigner(t *testing.T) {
	store, _ := NewGCS(GCSConfig{Service: &gcs.Service{}, Bucket: "docs"})
	if _, err := store.SignedURL(context.Background(), "k", time.Minute); err == nil {
		t.Error("SignedURL() without signer should fail")
	}
}

func TestPut(t *testing.T) {
	content := []byte("%PDF-1.7 quarterly report")
	var gotBody []byte
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"bucket": "docs",
			"name":   "uploads/report.pdf",
			"size":   "25",
		})
	}))
	defer srv.Close()

	svc, err := gcs.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("gcs.NewService() error = %v", err)
	}

	store, err := NewGCS(GCSConfig{Service: svc, Bucket: "docs", Prefix: "uploads/"})
	if err != nil {
		t.Fatalf("NewGCS() error = %v", err)
	}

	name, err := store.Put(context.Background(), "report.pdf", bytes.NewReader(content), "application/pdf")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if name != "uploads/report.pdf" {
		t.Errorf("Put() = %q, want uploads/report.pdf", name)
	}
	if !strings.HasSuffix(gotPath, "/b/docs/o") {
		t.Errorf("request path = %q, want suffix /b/docs/o", gotPath)
	}
	if !bytes.Contains(gotBody, content) {
		t.Error("request body does not carry the file content")
	}
	if !bytes.Contains(gotBody, []byte(`"name":"uploads/report.pdf"`)) {
		t.Errorf("request metadata does not carry the object name:\n%s", gotBody)
	}
}

func TestPut_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error": {"code": 403, "message": "denied"}}`)
	}))
	defer srv.Close()

	svc, _ := gcs.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
	store, _ := NewGCS(GCSConfig{Service: svc, Bucket: "docs", Prefix: "uploads/"})

	if _, err := store.Put(context.Background(), "report.pdf", strings.NewReader("x"), ""); err == nil {
		t.Error("Put() should fail on 403")
	}
}
