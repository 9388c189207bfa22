//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// RegisterSteps registers all step definitions.
func RegisterSteps(sc *godog.ScenarioContext, tc *TestContext) {
	sc.Step(`^the DID Lab server is running$`, tc.serverIsRunning)

	sc.Step(`^I issue the document '([^']*)'$`, tc.issueDocument)
	sc.Step(`^I issue the document '([^']*)' for another subject$`, tc.issueDocumentForOther)
	sc.Step(`^I issue an encrypted credential with fingerprint "([^"]*)"$`, tc.issuePrivate)
	sc.Step(`^I verify the document '([^']*)'$`, tc.verifyDocument)
	sc.Step(`^I verify the last fingerprint$`, tc.verifyLastFingerprint)
	sc.Step(`^I revoke the last fingerprint$`, tc.revokeAsSubject)
	sc.Step(`^I revoke the last fingerprint as "([^"]*)"$`, tc.revokeAs)
	sc.Step(`^I revoke the last fingerprint without a caller$`, tc.revokeWithoutCaller)
	sc.Step(`^I export my credentials$`, tc.export)

	sc.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	sc.Step(`^the response header "([^"]*)" should contain "([^"]*)"$`, tc.responseHeaderShouldContain)
}

func (tc *TestContext) serverIsRunning(context.Context) error {
	if err := tc.GET("/health/live", nil); err != nil {
		return err
	}
	return tc.responseStatusShouldBe(context.Background(), http.StatusOK)
}

func (tc *TestContext) issueFor(subject string, body map[string]any) error {
	body["subjectAddress"] = subject
	if err := tc.POST("/credentials/issue", body, tc.issueHeaders()); err != nil {
		return err
	}
	return tc.rememberFingerprint()
}

func (tc *TestContext) rememberFingerprint() error {
	if tc.LastResponse.StatusCode >= http.StatusBadRequest {
		return nil
	}
	fp, err := tc.ResponseField("fingerprint")
	if err != nil {
		return err
	}
	tc.LastFingerprint = fmt.Sprint(fp)
	return nil
}

func (tc *TestContext) issueDocument(_ context.Context, doc string) error {
	return tc.issueFor(tc.Subject, map[string]any{"rawJsonString": doc})
}

func (tc *TestContext) issueDocumentForOther(_ context.Context, doc string) error {
	return tc.issueFor(randomAddress(), map[string]any{"rawJsonString": doc})
}

func (tc *TestContext) issuePrivate(_ context.Context, fp string) error {
	return tc.issueFor(tc.Subject, map[string]any{
		"clientFingerprint": fp,
		"encryptedBlob":     map[string]any{"version": 1, "ciphertext": "c2VhbGVk"},
	})
}

func (tc *TestContext) verifyDocument(_ context.Context, doc string) error {
	return tc.POST("/credentials/verify", map[string]any{
		"subjectAddress": tc.Subject,
		"rawJsonString":  doc,
	}, nil)
}

func (tc *TestContext) verifyLastFingerprint(context.Context) error {
	return tc.POST("/credentials/verify", map[string]any{
		"subjectAddress": tc.Subject,
		"fingerprint":    tc.LastFingerprint,
	}, nil)
}

func (tc *TestContext) revokeAsSubject(ctx context.Context) error {
	return tc.revokeAs(ctx, tc.Subject)
}

func (tc *TestContext) revokeAs(_ context.Context, caller string) error {
	return tc.POST("/credentials/revoke", map[string]any{"fingerprint": tc.LastFingerprint}, tc.revokeHeaders(caller))
}

func (tc *TestContext) revokeWithoutCaller(context.Context) error {
	return tc.POST("/credentials/revoke", map[string]any{"fingerprint": tc.LastFingerprint}, nil)
}

func (tc *TestContext) export(context.Context) error {
	return tc.GET("/credentials/export?subjectAddress="+tc.Subject, tc.exportHeaders())
}

func (tc *TestContext) responseStatusShouldBe(_ context.Context, expected int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no response recorded")
	}
	if tc.LastResponse.StatusCode != expected {
		return fmt.Errorf("expected status %d but got %d: %s", expected, tc.LastResponse.StatusCode, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(_ context.Context, field, expected string) error {
	actual, err := tc.ResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actual) != expected {
		return fmt.Errorf("field %s: expected %s but got %v", field, expected, actual)
	}
	return nil
}

func (tc *TestContext) responseHeaderShouldContain(_ context.Context, header, want string) error {
	got := tc.LastResponse.Header.Get(header)
	if !strings.Contains(got, want) {
		return fmt.Errorf("header %s: %q does not contain %q", header, got, want)
	}
	return nil
}
