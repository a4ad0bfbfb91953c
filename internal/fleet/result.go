package fleet

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/joelmoss/vcsinfo/internal/config"
	"github.com/joelmoss/vcsinfo/internal/vcs"
)

// Outcome tells which stage a host's processing ended in.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeConnectFailed
	OutcomeDetectFailed
	OutcomeExtractFailed
)

// HostResult is what was learned about one host. Info is only meaningful
// for OutcomeOK and Err only for the failure outcomes.
type HostResult struct {
	Host     string
	User     string
	AuthType config.AuthType
	Kind     vcs.Kind
	Outcome  Outcome
	Info     vcs.Info
	Err      error
}

func newResult(cred config.Credential) HostResult {
	return HostResult{Host: cred.Hostname, User: cred.User, AuthType: cred.AuthType()}
}

func (r HostResult) connectFailed(err error) HostResult {
	r.Outcome, r.Err = OutcomeConnectFailed, err
	return r
}

func (r HostResult) detectFailed(err error) HostResult {
	r.Outcome, r.Err = OutcomeDetectFailed, err
	return r
}

func (r HostResult) extractFailed(kind vcs.Kind, err error) HostResult {
	r.Kind, r.Outcome, r.Err = kind, OutcomeExtractFailed, err
	return r
}

func (r HostResult) ok(info vcs.Info) HostResult {
	r.Kind, r.Outcome, r.Info = info.Kind, OutcomeOK, info
	return r
}

// ErrorMessage returns the failure text, or "" for a successful host.
func (r HostResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON writes only the fields that belong to the outcome, in a fixed
// order. Git results carry branch_name and SVN results carry branch.
func (r HostResult) MarshalJSON() ([]byte, error) {
	var kind *vcs.Kind
	if r.Kind != vcs.KindUnknown {
		kind = &r.Kind
	}

	switch r.Outcome {
	case OutcomeDetectFailed:
		return marshal(struct {
			VCSType      *vcs.Kind       `json:"vcs_type"`
			VCSTypeError string          `json:"vcs_type_error"`
			AuthType     config.AuthType `json:"auth_type"`
		}{nil, r.ErrorMessage(), r.AuthType})
	case OutcomeConnectFailed, OutcomeExtractFailed:
		return marshal(struct {
			VCSType  *vcs.Kind       `json:"vcs_type"`
			AuthType config.AuthType `json:"auth_type"`
			Error    string          `json:"error"`
		}{kind, r.AuthType, r.ErrorMessage()})
	}

	if r.Kind == vcs.KindSVN {
		return marshal(struct {
			VCSType  *vcs.Kind       `json:"vcs_type"`
			AuthType config.AuthType `json:"auth_type"`
			Revision string          `json:"revision"`
			Branch   string          `json:"branch"`
		}{kind, r.AuthType, r.Info.Revision, r.Info.Branch})
	}
	return marshal(struct {
		VCSType    *vcs.Kind       `json:"vcs_type"`
		AuthType   config.AuthType `json:"auth_type"`
		Revision   string          `json:"revision"`
		BranchName string          `json:"branch_name"`
	}{kind, r.AuthType, r.Info.Revision, r.Info.Branch})
}

// marshal is json.Marshal without HTML escaping, so stderr text such as
// "<path>" survives unchanged.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Report maps each user to the result of their host.
type Report map[string]HostResult

// Users returns the report's users in sorted order.
func (r Report) Users() []string {
	users := make([]string, 0, len(r))
	for u := range r {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// WriteJSON writes the report as JSON indented by four spaces.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(r)
}
