package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/didreg/internal/access"
	"github.com/roach88/didreg/internal/lifecycle"
	"github.com/roach88/didreg/internal/record"
)

// Scenario is one lifecycle test.
type Scenario struct {
	// Name uniquely identifies this scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Project holds the Initialize settings. Parties are names.
	Project ProjectSetup `yaml:"project"`

	// Funding credits each named party before the project is initialized.
	Funding map[string]uint64 `yaml:"funding"`

	// Setup steps establish state and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are the behaviour under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and final ledger state.
	Assertions []Assertion `yaml:"assertions"`
}

// ProjectSetup is the initial ProjectConfig.
type ProjectSetup struct {
	Authority        string   `yaml:"authority"`
	Operators        []string `yaml:"operators,omitempty"`
	FeeRecipient     string   `yaml:"fee_recipient,omitempty"`
	MintFee          uint64   `yaml:"mint_fee,omitempty"`
	BaseURI          string   `yaml:"base_uri,omitempty"`
	AllowDirectIssue bool     `yaml:"allow_direct_issue,omitempty"`
}

// Step is one engine call.
type Step struct {
	// Action is a lifecycle or admin action, e.g. "issue" or "block_wallet".
	Action string `yaml:"action"`

	// Caller is the party signing the call.
	Caller string `yaml:"caller"`

	// Wallet is the credential holder for lifecycle actions, and the subject
	// party for admin actions (operator, blocked wallet, new authority,
	// fee recipient).
	Wallet string `yaml:"wallet,omitempty"`

	// Identifier is the credential identifier.
	Identifier string `yaml:"identifier,omitempty"`

	// Proof is hashed into the token's proof digest at issue.
	Proof string `yaml:"proof,omitempty"`

	// Value carries set_mint_fee, set_base_uri and set_direct_issue arguments.
	Value string `yaml:"value,omitempty"`

	// Expect is "ok" (the default) or an error code such as ALREADY_PROCESSED.
	Expect string `yaml:"expect,omitempty"`
}

// Outcome is the expected outcome, defaulting to OutcomeOK.
func (s Step) Outcome() string {
	if s.Expect == "" {
		return OutcomeOK
	}
	return s.Expect
}

// OutcomeOK marks a committed step.
const OutcomeOK = "ok"

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Wallet     string `yaml:"wallet,omitempty"`
	Identifier string `yaml:"identifier,omitempty"`

	// Party is the identity checked by balance.
	Party string `yaml:"party,omitempty"`

	// Record is the record kind checked by account.
	Record string `yaml:"record,omitempty"`

	// Status is the expected lifecycle state name.
	Status string `yaml:"status,omitempty"`

	Count    *uint64 `yaml:"count,omitempty"`
	Lamports *uint64 `yaml:"lamports,omitempty"`
	Exists   *bool   `yaml:"exists,omitempty"`

	// Action and Actions are used by the trace assertions.
	Action  string   `yaml:"action,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertStatus     = "status"
	AssertRefCount   = "refcount"
	AssertBalance    = "balance"
	AssertAccount    = "account"
	AssertConserved  = "conserved"
	AssertTraceOrder = "trace_order"
	AssertTraceCount = "trace_count"
)

// Record kinds accepted by the account assertion.
var recordKinds = []string{"config", "status", "token", "holding", "refcount"}

var adminActions = map[string]bool{
	string(access.ActionTransferAuthority): true,
	string(access.ActionAddOperator):       true,
	string(access.ActionRemoveOperator):    true,
	string(access.ActionSetMintFee):        true,
	string(access.ActionSetFeeRecipient):   true,
	string(access.ActionSetBaseURI):        true,
	string(access.ActionSetDirectIssue):    true,
	string(access.ActionBlockWallet):       true,
	string(access.ActionUnblockWallet):     true,
	string(access.ActionBlockIdentifier):   true,
	string(access.ActionUnblockIdentifier): true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios lists the .yaml and .yml files in dir, sorted by name.
// A non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Project.Authority == "" {
		return fmt.Errorf("project.authority is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Outcome() != OutcomeOK {
			return fmt.Errorf("setup[%d]: setup steps must succeed", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Action == "" {
		return fmt.Errorf("action is required")
	}
	if step.Caller == "" {
		return fmt.Errorf("caller is required")
	}
	if access.Action(step.Action).IsLifecycle() {
		if step.Wallet == "" || step.Identifier == "" {
			return fmt.Errorf("%s needs wallet and identifier", step.Action)
		}
	} else if !adminActions[step.Action] {
		return fmt.Errorf("unknown action %q", step.Action)
	}
	if step.Outcome() != OutcomeOK {
		if _, err := lifecycle.ParseCode(step.Expect); err != nil {
			return fmt.Errorf("expect: %w", err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertStatus:
		if a.Wallet == "" || a.Identifier == "" || a.Status == "" {
			return fmt.Errorf("status needs wallet, identifier and status")
		}
		if _, err := record.ParseStatus(a.Status); err != nil {
			return err
		}
	case AssertRefCount:
		if a.Identifier == "" || a.Count == nil {
			return fmt.Errorf("refcount needs identifier and count")
		}
	case AssertBalance:
		if a.Party == "" || a.Lamports == nil {
			return fmt.Errorf("balance needs party and lamports")
		}
	case AssertAccount:
		if a.Exists == nil {
			return fmt.Errorf("account needs exists")
		}
		if !contains(recordKinds, a.Record) {
			return fmt.Errorf("account record must be one of %v", recordKinds)
		}
		if a.Record != "config" && a.Identifier == "" {
			return fmt.Errorf("account %s needs identifier", a.Record)
		}
		if a.Record != "config" && a.Record != "refcount" && a.Wallet == "" {
			return fmt.Errorf("account %s needs wallet", a.Record)
		}
	case AssertConserved:
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("actions list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Action == "" || a.Count == nil {
			return fmt.Errorf("trace_count needs action and count")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
