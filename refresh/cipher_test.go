package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func newTestCipher(t testing.TB) *Cipher {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("read key: %v", err)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	return c
}

func TestCipherRoundTrip(t *testing.T) {
	c := newTestCipher(t)
	for _, plain := range []string{"", "a", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1In0.sig", strings.Repeat("x", 4096)} {
		ct, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		got, ok := c.Decrypt(ct)
		if !ok || got != plain {
			t.Fatalf("round trip failed for %q: got %q ok=%v", plain, got, ok)
		}
	}
}

func TestCipherFormatHasThreeHexParts(t *testing.T) {
	c := newTestCipher(t)
	ct, err := c.Encrypt("token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	parts := strings.Split(ct, ":")
	if len(parts) != 3 {
		t.Fatalf("expected iv:tag:ct, got %q", ct)
	}
	if len(parts[0]) != 2*ivSize || len(parts[1]) != 2*tagSize || len(parts[2]) != 2*len("token") {
		t.Fatalf("unexpected component lengths in %q", ct)
	}
}

func TestCipherIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t)
	a, err := c.Encrypt("same")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := c.Encrypt("same")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions produced identical ciphertexts")
	}
	for _, ct := range []string{a, b} {
		if got, ok := c.Decrypt(ct); !ok || got != "same" {
			t.Fatalf("decrypt(%q) = %q, %v", ct, got, ok)
		}
	}
}

func TestCipherDetectsTagTamper(t *testing.T) {
	c := newTestCipher(t)
	ct, err := c.Encrypt("renewal-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	parts := strings.Split(ct, ":")
	tag, _ := hex.DecodeString(parts[1])

	for i := range tag {
		flipped := append([]byte(nil), tag...)
		flipped[i] ^= 0x01
		tampered := parts[0] + ":" + hex.EncodeToString(flipped) + ":" + parts[2]
		if got, ok := c.Decrypt(tampered); ok {
			t.Fatalf("tag byte %d flip accepted, got %q", i, got)
		}
	}
}

func TestCipherRejectsMalformed(t *testing.T) {
	c := newTestCipher(t)
	ct, err := c.Encrypt("renewal-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	parts := strings.Split(ct, ":")

	cases := []string{
		"",
		"no-colons",
		"a:b",
		"a:b:c:d",
		"zz:" + parts[1] + ":" + parts[2],
		parts[0][:10] + ":" + parts[1] + ":" + parts[2],
		parts[0] + ":" + parts[1][:10] + ":" + parts[2],
		parts[0] + ":" + parts[1] + ":" + parts[2] + "0",
		parts[0] + ":" + parts[1] + ":" + flipFirstByte(t, parts[2]),
	}
	for _, in := range cases {
		if _, ok := c.Decrypt(in); ok {
			t.Fatalf("malformed input accepted: %q", in)
		}
	}
}

func TestCipherRejectsNonCanonicalHex(t *testing.T) {
	c := newTestCipher(t)
	ct, err := c.Encrypt("renewal-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ct != strings.ToLower(ct) {
		t.Fatalf("Encrypt emitted upper-case hex: %q", ct)
	}

	parts := strings.Split(ct, ":")
	variants := []string{strings.ToUpper(ct)}
	for i := range parts {
		p := append([]string(nil), parts...)
		p[i] = strings.ToUpper(p[i])
		variants = append(variants, strings.Join(p, ":"))
	}
	for _, v := range variants {
		if v == ct {
			continue
		}
		if _, ok := c.Decrypt(v); ok {
			t.Fatalf("non-canonical spelling accepted: %q", v)
		}
		if Digest(v) == Digest(ct) {
			t.Fatal("distinct spellings share a digest")
		}
	}
}

func flipFirstByte(t *testing.T, h string) string {
	t.Helper()
	b, err := hex.DecodeString(h)
	if err != nil || len(b) == 0 {
		t.Fatalf("decode %q: %v", h, err)
	}
	b[0] ^= 0xFF
	return hex.EncodeToString(b)
}

func TestCipherWrongKey(t *testing.T) {
	a := newTestCipher(t)
	b := newTestCipher(t)
	ct, err := a.Encrypt("renewal-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, ok := b.Decrypt(ct); ok {
		t.Fatal("ciphertext opened under a different key")
	}
}

func TestParseKey(t *testing.T) {
	raw := make([]byte, KeySize)
	for i := range raw {
		raw[i] = byte(i)
	}
	key, err := ParseKey(hex.EncodeToString(raw))
	if err != nil || len(key) != KeySize {
		t.Fatalf("ParseKey valid = %v, %v", key, err)
	}

	for _, bad := range []string{"", "  ", "abcd", "zz" + strings.Repeat("0", 62)} {
		if _, err := ParseKey(bad); !errors.Is(err, ErrKeyInvalid) {
			t.Fatalf("ParseKey(%q) err = %v, want ErrKeyInvalid", bad, err)
		}
	}

	if _, err := NewCipher(raw[:16]); !errors.Is(err, ErrKeyInvalid) {
		t.Fatalf("NewCipher short key err = %v", err)
	}
}

func FuzzCipherDecrypt(f *testing.F) {
	c := newTestCipher(f)
	valid, err := c.Encrypt("seed")
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add("")
	f.Add("::")
	f.Add("00:00:00")

	f.Fuzz(func(t *testing.T, input string) {
		plain, ok := c.Decrypt(input)
		if !ok && plain != "" {
			t.Fatalf("failed decrypt leaked plaintext %q", plain)
		}
	})
}
