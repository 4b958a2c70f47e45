package console

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	val "github.com/go-ozzo/ozzo-validation"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/models"
)

const (
	DateLayout     = "2006-01-02"
	MaxUploadBytes = 25 * 1024 * 1024
	DefaultScope   = "All Employees"
)

var AllowedFileTypes = []string{"pdf", "doc", "docx", "txt"}

var ErrUploadTooLarge = fmt.Errorf("Total upload size exceeds %d MB.", MaxUploadBytes/(1024*1024))

// PolicyForm is the add/edit form as submitted by the browser.
type PolicyForm struct {
	Name          string `json:"name" form:"name"`
	Type          string `json:"type" form:"type"`
	Scope         string `json:"scope" form:"scope"`
	Description   string `json:"description" form:"description"`
	EffectiveDate string `json:"effective_date" form:"effective_date"`
	NoExpiry      bool   `json:"no_expiry" form:"no_expiry"`
	ExpiryDate    string `json:"expiry_date" form:"expiry_date"`

	CheckDuplicate bool `json:"check_duplicate" form:"check_duplicate"`

	Files []backend.File `json:"files" form:"-"`
}

// NewPolicyForm returns the defaults the add page starts with.
func NewPolicyForm(today time.Time) PolicyForm {
	return PolicyForm{
		Type:           models.PTYPE_HR,
		Scope:          DefaultScope,
		EffectiveDate:  today.Format(DateLayout),
		NoExpiry:       true,
		CheckDuplicate: true,
	}
}

// FormFromPolicy prefills the edit page.
func FormFromPolicy(p *models.Policy) PolicyForm {
	return PolicyForm{
		Name:          p.Name,
		Type:          p.Type,
		Scope:         p.Scope,
		Description:   p.Description,
		EffectiveDate: p.EffectiveDate,
		NoExpiry:      p.ExpiryDate == "",
		ExpiryDate:    p.ExpiryDate,
	}
}

func (f *PolicyForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Scope = strings.TrimSpace(f.Scope)
	f.Description = strings.TrimSpace(f.Description)
	f.EffectiveDate = strings.TrimSpace(f.EffectiveDate)
	f.ExpiryDate = strings.TrimSpace(f.ExpiryDate)
	if f.NoExpiry {
		f.ExpiryDate = ""
	}
}

func (f PolicyForm) Validate() error {
	types := make([]interface{}, len(models.PolicyTypes))
	for i, t := range models.PolicyTypes {
		types[i] = t
	}

	return val.ValidateStruct(&f,
		val.Field(&f.Name, val.Required.Error("Policy Name is required.")),
		val.Field(&f.Type, val.Required.Error("Policy Type is required."),
			val.In(types...).Error(fmt.Sprintf("Policy Type must be one of: %s.", strings.Join(models.PolicyTypes, ", ")))),
		val.Field(&f.Scope, val.Required.Error("Scope is required.")),
		val.Field(&f.Description, val.Required.Error("Description is required.")),
		val.Field(&f.EffectiveDate, val.Required.Error("Effective Date is required."),
			val.Date(DateLayout).Error("Effective Date must be a YYYY-MM-DD date.")),
		val.Field(&f.ExpiryDate,
			val.Date(DateLayout).Error("Expiry Date must be a YYYY-MM-DD date."),
			val.By(f.expiryNotBeforeEffective)),
		val.Field(&f.Files, val.By(checkFileRule)),
	)
}

func (f PolicyForm) expiryNotBeforeEffective(value interface{}) error {
	expiry, _ := value.(string)
	if expiry == "" || f.EffectiveDate == "" {
		return nil
	}
	e, err1 := time.Parse(DateLayout, f.EffectiveDate)
	x, err2 := time.Parse(DateLayout, expiry)
	if err1 != nil || err2 != nil {
		return nil
	}
	if x.Before(e) {
		return errors.New("Expiry Date cannot be before the Effective Date.")
	}
	return nil
}

func checkFileRule(value interface{}) error {
	files, _ := value.([]backend.File)
	return CheckFiles(files)
}

// CheckFiles enforces the accepted extensions and the combined size limit.
func CheckFiles(files []backend.File) error {
	var total int
	for _, f := range files {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
		if !slices.Contains(AllowedFileTypes, ext) {
			return fmt.Errorf("File %q is not accepted, allowed types: %s.", f.Name, strings.Join(AllowedFileTypes, ", "))
		}
		total += len(f.Data)
	}
	if total > MaxUploadBytes {
		return ErrUploadTooLarge
	}
	return nil
}

var problemOrder = []string{"name", "type", "scope", "description", "effective_date", "expiry_date", "files"}

// Problems flattens a validation error into display lines, in form order.
func Problems(err error) []string {
	if err == nil {
		return nil
	}
	var errs val.Errors
	if !errors.As(err, &errs) {
		return []string{err.Error()}
	}
	var out []string
	for _, key := range problemOrder {
		if e, ok := errs[key]; ok && e != nil {
			out = append(out, e.Error())
		}
	}
	return out
}

// Fields is the multipart payload of POST /policies.
func (f PolicyForm) Fields() url.Values {
	v := url.Values{}
	v.Set("name", f.Name)
	v.Set("type", f.Type)
	v.Set("scope", f.Scope)
	v.Set("description", f.Description)
	v.Set("effective_date", f.EffectiveDate)
	if f.ExpiryDate != "" {
		v.Set("expiry_date", f.ExpiryDate)
	}
	return v
}

// UpdateFields is the JSON payload of PUT /policies/{id}.
func (f PolicyForm) UpdateFields() map[string]any {
	m := map[string]any{
		"name":           f.Name,
		"type":           f.Type,
		"scope":          f.Scope,
		"description":    f.Description,
		"effective_date": f.EffectiveDate,
	}
	if f.ExpiryDate != "" {
		m["expiry_date"] = f.ExpiryDate
	} else {
		m["expiry_date"] = nil
	}
	return m
}

// Preview is the payload shown to the operator before the create call.
func (f PolicyForm) Preview() map[string]string {
	m := make(map[string]string)
	for k, v := range f.Fields() {
		m[k] = v[0]
	}
	return m
}
