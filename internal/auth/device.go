package auth

import "time"

// defaultInterval is used when the provider does not send a polling interval.
const defaultInterval = 5

// slowDownIncrement is added to the polling interval on every slow_down response.
const slowDownIncrement = 5

// DeviceCodeResponse holds the initial response from a device authorization request.
// It contains the code to show the user and the parameters needed for polling.
type DeviceCodeResponse struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	Expiry                  time.Time // zero when the provider sent no expires_in
	Interval                int       // minimum polling interval in seconds
}

// ExpiresIn returns how long the code stays valid after now, rounded to whole seconds.
// It returns 0 for an expired code or one without an expiry.
func (c DeviceCodeResponse) ExpiresIn(now time.Time) time.Duration {
	if c.Expiry.IsZero() || !c.Expiry.After(now) {
		return 0
	}
	return c.Expiry.Sub(now).Round(time.Second)
}

// BrowserURL returns the URL to open for the user, preferring the one with the code embedded.
func (c DeviceCodeResponse) BrowserURL() string {
	if c.VerificationURIComplete != "" {
		return c.VerificationURIComplete
	}
	return c.VerificationURI
}

// DisplayURI returns the URI to show the user, falling back to the complete URI
// when the provider sent no verification_uri.
func (c DeviceCodeResponse) DisplayURI() string {
	if c.VerificationURI != "" {
		return c.VerificationURI
	}
	return c.VerificationURIComplete
}
