// Package login sequences the device authorization flow: request a code,
// prompt the user, poll for the token and verify it once.
package login

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/waabox/devicelogin/internal/auth"
	"github.com/waabox/devicelogin/internal/domain"
)

// DeviceFlow issues device codes and exchanges them for tokens.
type DeviceFlow interface {
	RequestCode(ctx context.Context) (auth.DeviceCodeResponse, error)
	PollToken(ctx context.Context, code auth.DeviceCodeResponse) (*oauth2.Token, error)
}

// Prompter shows the code to the user and blocks until they are ready.
type Prompter interface {
	Prompt(ctx context.Context, code auth.DeviceCodeResponse) error
}

// Result is the outcome of a successful run.
// Identity is nil and VerifyErr is set when the token could not be verified.
type Result struct {
	Token     *oauth2.Token
	Identity  *domain.Identity
	VerifyErr error
}

// Verified reports whether the identity call succeeded.
func (r Result) Verified() bool {
	return r.Identity != nil
}

// Authenticator runs one device flow per call to Run.
type Authenticator struct {
	flow     DeviceFlow
	prompter Prompter
	verifier domain.IdentityProvider
	out      io.Writer
	log      *zap.SugaredLogger
}

// NewAuthenticator wires the flow steps together. Status messages go to out.
func NewAuthenticator(flow DeviceFlow, prompter Prompter, verifier domain.IdentityProvider, out io.Writer, log *zap.SugaredLogger) *Authenticator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Authenticator{
		flow:     flow,
		prompter: prompter,
		verifier: verifier,
		out:      out,
		log:      log,
	}
}

// Run requests a fresh device code and drives it to a token.
// A failed identity check is reported in Result.VerifyErr, not as an error.
func (a *Authenticator) Run(ctx context.Context) (Result, error) {
	code, err := a.flow.RequestCode(ctx)
	if err != nil {
		return Result{}, err
	}
	a.log.Debugw("device code issued", "verification_uri", code.VerificationURI, "interval", code.Interval)

	if err := a.prompter.Prompt(ctx, code); err != nil {
		return Result{}, err
	}

	fmt.Fprintln(a.out, "Waiting for authorization... this may take a few moments.")
	token, err := a.flow.PollToken(ctx, code)
	if err != nil {
		return Result{}, err
	}
	fmt.Fprintln(a.out, "Successfully obtained an access token.")

	res := Result{Token: token}
	identity, err := a.verifier.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		a.log.Debugw("token verification failed", "error", err)
		fmt.Fprintf(a.out, "Warning: unable to verify token. %v\n", err)
		res.VerifyErr = err
		return res, nil
	}
	res.Identity = &identity
	fmt.Fprintf(a.out, "Authenticated as: %s\n", identity.Login)
	return res, nil
}
