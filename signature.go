package stowgate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	MaxExpiresSeconds  = 604800 // 7 days
	DateTimeFormat     = "20060102T150405Z"
	DateFormat         = "20060102"

	signedHeaders = "host"
	payloadHash   = "UNSIGNED-PAYLOAD"
)

var presignParams = []string{
	"X-Amz-Algorithm",
	"X-Amz-Credential",
	"X-Amz-Date",
	"X-Amz-Expires",
	"X-Amz-SignedHeaders",
	"X-Amz-Signature",
}

// HasPresignParams reports whether query carries any presign parameter.
func HasPresignParams(query url.Values) bool {
	for _, p := range presignParams {
		if query.Has(p) {
			return true
		}
	}
	return false
}

// PresignRequest describes a share link to sign.
type PresignRequest struct {
	Method    string
	Host      string
	Path      string
	AccessKey string
	SecretKey string
	Region    string
	Service   string
	Expires   time.Duration
	Now       time.Time
}

// Presign returns the query parameters that authorize req.Method on
// req.Path until req.Now + req.Expires. The scheme follows AWS Signature V4
// query signing with only the host header signed and an unsigned payload.
func Presign(req PresignRequest) (url.Values, error) {
	if req.AccessKey == "" || req.SecretKey == "" {
		return nil, errors.New("presign: access key and secret key are required")
	}

	expires := int(req.Expires / time.Second)
	if expires <= 0 || expires > MaxExpiresSeconds {
		return nil, fmt.Errorf("presign: expiry must be between 1s and %ds", MaxExpiresSeconds)
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	dateStamp := now.Format(DateFormat)
	query := url.Values{}
	query.Set("X-Amz-Algorithm", SignatureAlgorithm)
	query.Set("X-Amz-Credential", fmt.Sprintf("%s/%s/%s/%s/aws4_request", req.AccessKey, dateStamp, req.Region, req.Service))
	query.Set("X-Amz-Date", now.Format(DateTimeFormat))
	query.Set("X-Amz-Expires", strconv.Itoa(expires))
	query.Set("X-Amz-SignedHeaders", signedHeaders)

	signature := calculateSignature(
		req.SecretKey,
		strings.ToUpper(req.Method),
		canonicalPath(req.Path),
		req.Host,
		query,
		now,
		dateStamp,
		req.Region,
		req.Service,
	)
	query.Set("X-Amz-Signature", signature)

	return query, nil
}

// PresignVerifier verifies presigned share links against a SecretStore.
type PresignVerifier struct {
	Region  string
	Service string
	Store   SecretStore

	now func() time.Time
}

func NewPresignVerifier(region, service string, store SecretStore) *PresignVerifier {
	return &PresignVerifier{
		Region:  region,
		Service: service,
		Store:   store,
		now:     time.Now,
	}
}

// VerifyRequest verifies r's presigned query against its method, host and path.
func (v *PresignVerifier) VerifyRequest(r *http.Request) error {
	return v.Verify(r.Method, r.Host, r.URL.Path, r.URL.Query())
}

// Verify checks a presigned query. It validates, in order: presence of every
// parameter, the algorithm, the timestamp format, the expiry range, that the
// link has not expired, the credential scope and the signature itself.
// Every failure wraps ErrUnauthorized.
func (v *PresignVerifier) Verify(method, host, path string, query url.Values) error {
	params, err := extractParams(query)
	if err != nil {
		return err
	}

	if err := v.validateParams(params); err != nil {
		return err
	}

	secretKey, err := v.Store.Lookup(params.accessKey)
	if err != nil {
		return fmt.Errorf("invalid access key: %w", ErrUnauthorized)
	}

	expected := calculateSignature(
		secretKey,
		strings.ToUpper(method),
		canonicalPath(path),
		host,
		query,
		params.requestTime,
		params.dateStamp,
		params.region,
		params.service,
	)

	if !hmac.Equal([]byte(expected), []byte(params.signature)) {
		return fmt.Errorf("signature mismatch: %w", ErrUnauthorized)
	}

	return nil
}

type signatureParams struct {
	algorithm     string
	accessKey     string
	dateStamp     string
	region        string
	service       string
	requestTime   time.Time
	expires       int
	signedHeaders string
	signature     string
}

func extractParams(query url.Values) (*signatureParams, error) {
	for _, p := range presignParams {
		if query.Get(p) == "" {
			return nil, fmt.Errorf("missing required signature parameters: %w", ErrUnauthorized)
		}
	}

	requestTime, err := time.Parse(DateTimeFormat, query.Get("X-Amz-Date"))
	if err != nil {
		return nil, fmt.Errorf("invalid X-Amz-Date format: %w", ErrUnauthorized)
	}

	expires, err := strconv.Atoi(query.Get("X-Amz-Expires"))
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return nil, fmt.Errorf("invalid X-Amz-Expires: must be between 1 and %d: %w", MaxExpiresSeconds, ErrUnauthorized)
	}

	credParts := strings.Split(query.Get("X-Amz-Credential"), "/")
	if len(credParts) != 5 {
		return nil, fmt.Errorf("invalid X-Amz-Credential format: %w", ErrUnauthorized)
	}

	if credParts[4] != "aws4_request" {
		return nil, fmt.Errorf("invalid credential terminator: expected aws4_request: %w", ErrUnauthorized)
	}

	return &signatureParams{
		algorithm:     query.Get("X-Amz-Algorithm"),
		accessKey:     credParts[0],
		dateStamp:     credParts[1],
		region:        credParts[2],
		service:       credParts[3],
		requestTime:   requestTime,
		expires:       expires,
		signedHeaders: query.Get("X-Amz-SignedHeaders"),
		signature:     query.Get("X-Amz-Signature"),
	}, nil
}

func (v *PresignVerifier) validateParams(params *signatureParams) error {
	if params.algorithm != SignatureAlgorithm {
		return fmt.Errorf("invalid algorithm: expected %s, got %s: %w", SignatureAlgorithm, params.algorithm, ErrUnauthorized)
	}

	if params.signedHeaders != signedHeaders {
		return fmt.Errorf("unsupported signed headers %q: %w", params.signedHeaders, ErrUnauthorized)
	}

	now := time.Now
	if v.now != nil {
		now = v.now
	}
	if now().After(params.requestTime.Add(time.Duration(params.expires) * time.Second)) {
		return fmt.Errorf("signature expired: %w", ErrUnauthorized)
	}

	if params.dateStamp != params.requestTime.Format(DateFormat) {
		return fmt.Errorf("credential date mismatch: %w", ErrUnauthorized)
	}

	if params.region != v.Region {
		return fmt.Errorf("region mismatch: expected %s, got %s: %w", v.Region, params.region, ErrUnauthorized)
	}

	if params.service != v.Service {
		return fmt.Errorf("service mismatch: expected %s, got %s: %w", v.Service, params.service, ErrUnauthorized)
	}

	return nil
}

// canonicalPath escapes the decoded request path the same way on both sides.
func canonicalPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Path: p}).EscapedPath()
}

func calculateSignature(
	secretKey, method, path, host string,
	query url.Values,
	requestTime time.Time,
	dateStamp, region, service string,
) string {
	canonicalRequest := strings.Join([]string{
		method,
		path,
		canonicalQueryString(query),
		"host:" + strings.TrimSpace(host) + "\n",
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, region, service)
	stringToSign := strings.Join([]string{
		SignatureAlgorithm,
		requestTime.Format(DateTimeFormat),
		credentialScope,
		sha256Hex(canonicalRequest),
	}, "\n")

	signingKey := deriveSigningKey(secretKey, dateStamp, region, service)
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

// canonicalQueryString covers the presign parameters only; other query
// parameters are not signed.
func canonicalQueryString(query url.Values) string {
	params := url.Values{}
	for _, k := range presignParams {
		if k == "X-Amz-Signature" {
			continue
		}
		if v, ok := query[k]; ok {
			params[k] = v
		}
	}
	return params.Encode()
}

func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
