package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	err   error
	calls int
	last  string
}

func (r *recordingSender) SendSMS(_ context.Context, to, body string) error {
	r.calls++
	r.last = body
	return r.err
}

func TestBuildSMSSenderAutoPrefersFailover(t *testing.T) {
	sender, provider, reason := BuildSMSSender(ProviderSelectionConfig{
		Preference:       SMSProviderAuto,
		TelnyxAPIKey:     "key",
		TelnyxFromNumber: "+61400000001",
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
		TwilioFromNumber: "+61400000002",
	}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "telnyx+twilio", provider)
	assert.Empty(t, reason)
	assert.IsType(t, &FailoverSender{}, sender)
}

func TestBuildSMSSenderSingleProvider(t *testing.T) {
	sender, provider, reason := BuildSMSSender(ProviderSelectionConfig{
		Preference:       SMSProviderAuto,
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
		TwilioFromNumber: "+61400000002",
	}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, SMSProviderTwilio, provider)
	assert.Empty(t, reason)
}

func TestBuildSMSSenderForcedProviderMissingCreds(t *testing.T) {
	sender, provider, reason := BuildSMSSender(ProviderSelectionConfig{
		Preference: SMSProviderTelnyx,
	}, nil)
	assert.Nil(t, sender)
	assert.Empty(t, provider)
	assert.Contains(t, reason, "TELNYX_API_KEY missing")
}

func TestBuildSMSSenderNoProviders(t *testing.T) {
	sender, _, reason := BuildSMSSender(ProviderSelectionConfig{Preference: SMSProviderAuto}, nil)
	assert.Nil(t, sender)
	assert.Contains(t, reason, "telnyx")
	assert.Contains(t, reason, "twilio")
}

func TestFailoverSenderFallsBack(t *testing.T) {
	primary := &recordingSender{err: errors.New("boom")}
	secondary := &recordingSender{}
	f := NewFailoverSender(primary, "telnyx", secondary, "twilio", nil)

	err := f.SendSMS(context.Background(), "+61412345678", "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, "hello", secondary.last)
}

func TestFailoverSenderPrimarySuccessSkipsSecondary(t *testing.T) {
	primary := &recordingSender{}
	secondary := &recordingSender{}
	f := NewFailoverSender(primary, "telnyx", secondary, "twilio", nil)

	require.NoError(t, f.SendSMS(context.Background(), "+61412345678", "hello"))
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestFailoverSenderBothFail(t *testing.T) {
	primary := &recordingSender{err: errors.New("boom")}
	secondary := &recordingSender{err: errors.New("also boom")}
	f := NewFailoverSender(primary, "telnyx", secondary, "twilio", nil)

	err := f.SendSMS(context.Background(), "+61412345678", "hello")
	require.Error(t, err)
	assert.Equal(t, "also boom", err.Error())
}
