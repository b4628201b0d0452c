package billing

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

const testSecret = "whsec_test"

var testBody = []byte(`{"id":"evt_1","type":"subscription.created","created":1700000000,"data":{"object":{"user_id":7,"customer_id":"cus_1","plan_id":"pro-month","status":"active"}}}`)

func signedHeader(body []byte, secret string, ts int64) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, ComputeSignature(body, secret, ts))
}

func TestVerifyAndDecode_Valid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	header := signedHeader(testBody, testSecret, now.Unix())

	ev, err := VerifyAndDecode(testBody, header, testSecret, now, DefaultTolerance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Kind != EventSubscriptionCreated {
		t.Fatalf("unexpected event: id=%q kind=%q", ev.ID, ev.Kind)
	}
	if ev.Data.UserID != 7 || ev.Data.CustomerID != "cus_1" || ev.Data.PlanID != "pro-month" {
		t.Fatalf("unexpected payload: %+v", ev.Data)
	}
	if !ev.OccurredAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected occurredAt: %v", ev.OccurredAt)
	}
}

func TestVerifyAndDecode_MissingCredential(t *testing.T) {
	now := time.Unix(1700000000, 0)
	header := signedHeader(testBody, testSecret, now.Unix())

	cases := []struct {
		name   string
		body   []byte
		header string
		secret string
	}{
		{name: "no header", body: testBody, header: "", secret: testSecret},
		{name: "empty body", body: nil, header: header, secret: testSecret},
		{name: "no secret", body: testBody, header: header, secret: ""},
		{name: "header without elements", body: testBody, header: "t=,v1=", secret: testSecret},
	}
	for _, tc := range cases {
		if _, err := VerifyAndDecode(tc.body, tc.header, tc.secret, now, 0); !errors.Is(err, ErrMissingCredential) {
			t.Fatalf("%s: got %v, want ErrMissingCredential", tc.name, err)
		}
	}
}

func TestVerifyAndDecode_SignatureMismatch(t *testing.T) {
	now := time.Unix(1700000000, 0)
	header := signedHeader(testBody, "other-secret", now.Unix())

	if _, err := VerifyAndDecode(testBody, header, testSecret, now, 0); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("got %v, want ErrAuthentication", err)
	}

	// Valid signature over different content must also fail.
	tampered := append([]byte(nil), testBody...)
	tampered[len(tampered)-2] = 'x'
	header = signedHeader(testBody, testSecret, now.Unix())
	if _, err := VerifyAndDecode(tampered, header, testSecret, now, 0); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("got %v, want ErrAuthentication for tampered body", err)
	}
}

func TestVerifyAndDecode_StalePayload(t *testing.T) {
	sent := time.Unix(1700000000, 0)
	header := signedHeader(testBody, testSecret, sent.Unix())

	now := sent.Add(DefaultTolerance + time.Second)
	if _, err := VerifyAndDecode(testBody, header, testSecret, now, 0); !errors.Is(err, ErrStalePayload) {
		t.Fatalf("got %v, want ErrStalePayload for old timestamp", err)
	}

	// Far-future timestamps are equally suspect.
	now = sent.Add(-DefaultTolerance - time.Second)
	if _, err := VerifyAndDecode(testBody, header, testSecret, now, 0); !errors.Is(err, ErrStalePayload) {
		t.Fatalf("got %v, want ErrStalePayload for future timestamp", err)
	}

	// Inside a custom window the same payload verifies.
	now = sent.Add(9 * time.Minute)
	if _, err := VerifyAndDecode(testBody, header, testSecret, now, 10*time.Minute); err != nil {
		t.Fatalf("unexpected error inside custom tolerance: %v", err)
	}
}

func TestVerifyAndDecode_MalformedPayload(t *testing.T) {
	now := time.Unix(1700000000, 0)
	bad := []byte(`{"type":"subscription.created"`)
	header := signedHeader(bad, testSecret, now.Unix())

	if _, err := VerifyAndDecode(bad, header, testSecret, now, 0); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("got %v, want ErrMalformedPayload", err)
	}

	// Well-formed JSON without an event identity is also rejected.
	noID := []byte(`{"type":"subscription.created","created":1700000000}`)
	header = signedHeader(noID, testSecret, now.Unix())
	if _, err := VerifyAndDecode(noID, header, testSecret, now, 0); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("got %v, want ErrMalformedPayload for missing id", err)
	}
}

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		in   string
		want EventKind
	}{
		{in: "subscription.created", want: EventSubscriptionCreated},
		{in: "Subscription.Updated", want: EventSubscriptionUpdated},
		{in: "subscription.canceled", want: EventSubscriptionCanceled},
		{in: "invoice.paid", want: EventKindUnknown},
		{in: "", want: EventKindUnknown},
	}
	for _, tt := range tests {
		if got := ParseEventKind(tt.in); got != tt.want {
			t.Fatalf("ParseEventKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlanTypeForPlanID(t *testing.T) {
	if got := PlanTypeForPlanID("pro-month"); got != "pro" {
		t.Fatalf("PlanTypeForPlanID(pro-month) = %q", got)
	}
	if got := PlanTypeForPlanID("PRO-YEAR"); got != "pro" {
		t.Fatalf("PlanTypeForPlanID(PRO-YEAR) = %q", got)
	}
	if got := PlanTypeForPlanID("basic"); got != "free" {
		t.Fatalf("PlanTypeForPlanID(basic) = %q", got)
	}
}
