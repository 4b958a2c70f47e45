package console

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/models"
)

// Backend is the part of the policy API the assistant drives.
type Backend interface {
	ListPolicies(ctx context.Context) ([]models.Policy, error)
	CreatePolicy(ctx context.Context, fields url.Values, files []backend.File) (*backend.Result, error)
	UploadFiles(ctx context.Context, id models.PolicyID, files []backend.File) (*backend.Result, error)
	Chat(ctx context.Context, message string) (*models.ChatReply, error)
}

var (
	listAllPhrases = []string{"show all policies", "list all policies", "show me all policies"}
	fileOpKeywords = []string{"file", "files", "document", "attach", "upload", "replace"}

	toSeparator = regexp.MustCompile(`(?i) to `)
)

type Assistant struct {
	backend Backend
	now     func() time.Time
}

func NewAssistant(b Backend) *Assistant {
	return &Assistant{backend: b, now: time.Now}
}

// Handle answers one chat message. It may update sess.LastResults; the caller
// persists the session. Failures are rendered into the answer, never returned.
func (a *Assistant) Handle(ctx context.Context, sess *models.Session, text string, files []backend.File) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("chat handler panicked")
			answer = fmt.Sprintf("❌ Chat error: %v", r)
		}
	}()

	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	if slices.Contains(listAllPhrases, lower) {
		return a.listAll(ctx, sess)
	}

	if len(files) > 0 && looksLikeFileOp(lower) {
		return a.uploadToPolicy(ctx, sess, text, files)
	}

	return a.forward(ctx, sess, text, files)
}

func looksLikeFileOp(lower string) bool {
	for _, k := range fileOpKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// TargetPolicyName extracts the policy name following the first " to ".
func TargetPolicyName(text string) string {
	parts := toSeparator.Split(text, 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(parts[1]), `'"`)
}

func (a *Assistant) listAll(ctx context.Context, sess *models.Session) string {
	policies, err := a.backend.ListPolicies(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Failed to load policies: %s", backend.Message(err))
	}
	if len(policies) == 0 {
		return "ℹ️ No policies found."
	}

	sess.LastResults = policies
	return RenderListing(policies)
}

// RenderListing formats policies as the numbered chat listing.
func RenderListing(policies []models.Policy) string {
	lines := []string{
		fmt.Sprintf("✅ Found %d policies.", len(policies)),
		"\n### 📋 All Policies\n",
	}
	for i, p := range policies {
		lines = append(lines,
			fmt.Sprintf("**%d. 📄 %s**", i+1, orDefault(p.Name, "Unnamed")),
			fmt.Sprintf(" - **Type:** %s  •  **Scope:** %s", orDefault(p.Type, "N/A"), orDefault(p.Scope, "N/A")),
			fmt.Sprintf(" - **Effective:** %s", orDefault(p.EffectiveDate, "N/A")),
		)
		if p.ExpiryDate != "" {
			lines = append(lines, fmt.Sprintf(" - **Expires:** %s", p.ExpiryDate))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (a *Assistant) uploadToPolicy(ctx context.Context, sess *models.Session, text string, files []backend.File) string {
	name := TargetPolicyName(text)
	if name == "" && len(sess.LastResults) == 1 {
		name = sess.LastResults[0].Name
	}
	if name == "" {
		return "❌ Please mention the policy name, e.g., “Add this file to **Customer Refund Policy**”."
	}

	policies, err := a.backend.ListPolicies(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Could not fetch policies: %s", backend.Message(err))
	}

	matches := FindByName(policies, name)
	switch len(matches) {
	case 0:
		return fmt.Sprintf("❌ Policy '%s' not found. Try **Show all policies** and copy the exact name.", name)
	case 1:
	default:
		opts := make([]string, len(matches))
		for i, p := range matches {
			opts[i] = fmt.Sprintf("- %s (id: `%s`)", p.Name, p.ID)
		}
		return fmt.Sprintf("⚠️ Multiple '%s'. Please specify the **ID** next time:\n%s", name, strings.Join(opts, "\n"))
	}

	target := matches[0]
	if _, err := a.backend.UploadFiles(ctx, target.ID, files); err != nil {
		if !backend.IsKind(err, backend.KindHTTP) {
			return fmt.Sprintf("❌ Chat error: %s", backend.Message(err))
		}
		return fmt.Sprintf("❌ Failed to upload files: %s", httpDetail(err))
	}
	return fmt.Sprintf("✅ Uploaded %d file(s) to **%s**.", len(files), target.Name)
}

func (a *Assistant) forward(ctx context.Context, sess *models.Session, text string, files []backend.File) string {
	reply, err := a.backend.Chat(ctx, text)
	if err != nil {
		if status := backend.StatusCode(err); status != 0 {
			return fmt.Sprintf("❌ Chat service error: %d", status)
		}
		return fmt.Sprintf("❌ Chat error: %s", backend.Message(err))
	}

	answer := reply.Response
	if answer == "" {
		answer = "No response received"
	}
	if reply.Data == nil {
		return answer
	}

	switch reply.Data.Action {
	case models.ACTION_ADD:
		return a.createFromChat(ctx, reply.Data.ExtractedData, answer, files)
	case models.ACTION_SEARCH:
		sess.LastResults = reply.Data.Results
	}
	return answer
}

func (a *Assistant) createFromChat(ctx context.Context, extracted *models.ExtractedPolicy, answer string, files []backend.File) string {
	if extracted == nil || extracted.Name == "" || extracted.Type == "" {
		return answer
	}

	ptype, ok := models.NormalizePolicyType(extracted.Type)
	if !ok {
		return fmt.Sprintf("❌ Create failed: Policy Type must be one of: %s.\n\n*AI:* %s",
			strings.Join(models.PolicyTypes, ", "), answer)
	}

	form := PolicyForm{
		Name:          extracted.Name,
		Type:          ptype,
		Scope:         orDefault(extracted.Scope, DefaultScope),
		Description:   orDefault(extracted.Description, fmt.Sprintf("Auto-created %s policy: %s", ptype, extracted.Name)),
		EffectiveDate: a.now().Format(DateLayout),
	}
	if isISODate(extracted.EffectiveDate) {
		form.EffectiveDate = extracted.EffectiveDate
	}
	if isISODate(extracted.ExpiryDate) {
		form.ExpiryDate = extracted.ExpiryDate
	}

	if _, err := a.backend.CreatePolicy(ctx, form.Fields(), files); err != nil {
		detail := backend.Message(err)
		if backend.IsKind(err, backend.KindHTTP) {
			detail = httpDetail(err)
		}
		return fmt.Sprintf("❌ Create failed: %s", detail)
	}

	return fmt.Sprintf("✅ **Successfully created policy via chat!**\n\n"+
		"**Name:** %s  •  **Type:** %s  •  **Scope:** %s\n"+
		"**Effective:** %s\n\n"+
		"*AI:* %s", form.Name, form.Type, form.Scope, form.EffectiveDate, answer)
}

func httpDetail(err error) string {
	var be *backend.Error
	if !errors.As(err, &be) {
		return err.Error()
	}
	if d := be.DetailText(); d != "" {
		return d
	}
	return be.Message
}

func isISODate(s string) bool {
	if s == "" {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
