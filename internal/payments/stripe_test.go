package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testPayload = `{"id":"evt_1","object":"event","type":"invoice.paid","api_version":"2020-08-27","data":{"object":{"id":"in_1","object":"invoice"}}}`

func TestConstructEvent(t *testing.T) {
	gateway := NewStripeGateway("sk_test_x", "whsec_test")

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(testPayload),
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := gateway.ConstructEvent(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "invoice.paid", string(event.Type))
}

func TestConstructEvent_Rejects(t *testing.T) {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(testPayload),
		Secret:    "whsec_other",
		Timestamp: time.Now(),
	})

	_, err := NewStripeGateway("sk_test_x", "whsec_test").ConstructEvent(signed.Payload, signed.Header)
	assert.Error(t, err)

	_, err = NewStripeGateway("sk_test_x", "").ConstructEvent(signed.Payload, signed.Header)
	assert.Error(t, err)
}
