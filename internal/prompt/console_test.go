package prompt_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/devicelogin/internal/auth"
	"github.com/waabox/devicelogin/internal/prompt"
)

func testCode() auth.DeviceCodeResponse {
	return auth.DeviceCodeResponse{
		DeviceCode:      "dev_abc",
		UserCode:        "ABCD-1234",
		VerificationURI: "https://github.com/login/device",
		Expiry:          time.Now().Add(15 * time.Minute),
		Interval:        5,
	}
}

func TestConsole_Prompt_ShowsCodeAndOpensBrowser(t *testing.T) {
	var out bytes.Buffer
	var opened []string
	c := prompt.NewConsole(strings.NewReader("\n"), &out, func(url string) error {
		opened = append(opened, url)
		return nil
	}, nil)

	require.NoError(t, c.Prompt(context.Background(), testCode()))

	view := out.String()
	assert.Contains(t, view, "https://github.com/login/device")
	assert.Contains(t, view, "ABCD-1234")
	assert.Contains(t, view, "This code will expire in")
	assert.NotContains(t, view, "dev_abc")
	assert.Equal(t, []string{"https://github.com/login/device"}, opened)
}

func TestConsole_Prompt_BrowserFailureIsIgnored(t *testing.T) {
	var out bytes.Buffer
	c := prompt.NewConsole(strings.NewReader("\n"), &out, func(string) error {
		return errors.New("no display")
	}, nil)

	require.NoError(t, c.Prompt(context.Background(), testCode()))
	assert.NotContains(t, out.String(), "no display")
}

func TestConsole_Prompt_EachPromptConsumesALine(t *testing.T) {
	in := strings.NewReader("first\nsecond\n")
	c := prompt.NewConsole(in, &bytes.Buffer{}, prompt.NoBrowser, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Prompt(context.Background(), testCode()))
	}
}

func TestConsole_Prompt_EndOfInputProceeds(t *testing.T) {
	c := prompt.NewConsole(strings.NewReader(""), &bytes.Buffer{}, prompt.NoBrowser, nil)
	require.NoError(t, c.Prompt(context.Background(), testCode()))
}

func TestConsole_Prompt_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := prompt.NewConsole(strings.NewReader("\n"), &bytes.Buffer{}, prompt.NoBrowser, nil)
	require.ErrorIs(t, c.Prompt(ctx, testCode()), context.Canceled)
}

func TestConsole_Prompt_WithoutExpiry(t *testing.T) {
	var out bytes.Buffer
	code := testCode()
	code.Expiry = time.Time{}
	c := prompt.NewConsole(strings.NewReader("\n"), &out, prompt.NoBrowser, nil)

	require.NoError(t, c.Prompt(context.Background(), code))
	assert.NotContains(t, out.String(), "expire")
	assert.Contains(t, out.String(), "Press Enter")
}

func TestConsole_Prompt_CancelWhileWaitingForInput(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	c := prompt.NewConsole(in, &bytes.Buffer{}, prompt.NoBrowser, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Prompt(ctx, testCode()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Prompt did not return after the context was cancelled")
	}
}

func TestConsole_Prompt_FallsBackToCompleteURI(t *testing.T) {
	var out bytes.Buffer
	code := testCode()
	code.VerificationURI = ""
	code.VerificationURIComplete = "https://github.com/login/device?user_code=ABCD-1234"
	c := prompt.NewConsole(strings.NewReader("\n"), &out, prompt.NoBrowser, nil)

	require.NoError(t, c.Prompt(context.Background(), code))
	assert.Contains(t, out.String(), "Please visit https://github.com/login/device?user_code=ABCD-1234 and enter")
}
