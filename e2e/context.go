package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries one scenario's state: who is signed in and the last
// response received from the server under test.
type TestContext struct {
	BaseURL   string
	JWTSecret string
	JWTIssuer string

	client  *http.Client
	token   string
	status  int
	body    []byte
	decoded map[string]any
	saved   map[string]string
}

func NewTestContext(baseURL, secret, issuer string) *TestContext {
	tc := &TestContext{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		JWTSecret: secret,
		JWTIssuer: issuer,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	tc.Reset()
	return tc
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.token = ""
	tc.status = 0
	tc.body = nil
	tc.decoded = nil
	tc.saved = map[string]string{"scenario": strconv.FormatInt(time.Now().UnixNano(), 36)}
}

// SignIn issues a development HS256 token for subject and email. Both may
// use {scenario} to stay unique across runs against the same server.
func (tc *TestContext) SignIn(subject, email string) error {
	subject, email = tc.Expand(subject), tc.Expand(email)
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"iss":   tc.JWTIssuer,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(tc.JWTSecret))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	tc.token = signed
	return nil
}

func (tc *TestContext) SignOut() { tc.token = "" }

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, "", nil)
}

func (tc *TestContext) POST(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, "application/json", bytes.NewReader(payload))
}

// Upload posts a multipart form with one file part named "file".
func (tc *TestContext) Upload(path string, fields map[string]string, fileName string, content []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, mw.FormDataContentType(), &buf)
}

func (tc *TestContext) do(method, path, contentType string, body io.Reader) error {
	req, err := http.NewRequest(method, tc.BaseURL+tc.Expand(path), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.status = resp.StatusCode
	tc.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.decoded = nil
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var decoded map[string]any
		if json.Unmarshal(tc.body, &decoded) == nil {
			tc.decoded = decoded
		}
	}
	return nil
}

func (tc *TestContext) Status() int { return tc.status }
func (tc *TestContext) Body() []byte { return tc.body }

// Field returns a value from the last JSON response by dotted path, e.g.
// "reg.status" or "checklist.missing".
func (tc *TestContext) Field(path string) (any, error) {
	if tc.decoded == nil {
		return nil, fmt.Errorf("last response was not a JSON object: %s", tc.body)
	}
	var cur any = tc.decoded
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%q: %v is not an object", path, cur)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("%q not found in %s", path, tc.body)
		}
	}
	return cur, nil
}

// Save remembers a value for later {name} substitution in paths.
func (tc *TestContext) Save(name, value string) { tc.saved[name] = value }

// Expand replaces {name} placeholders with saved values.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.saved {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
