package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind discriminates simple deployments from upgradable (proxied) ones
type Kind string

const (
	KindSimple     Kind = "SIMPLE"
	KindUpgradable Kind = "UPGRADABLE"
)

// DateLayout is the ISO-8601 form used for record dates (UTC, millisecond precision)
const DateLayout = "2006-01-02T15:04:05.000Z"

// DeploymentKind is the tagged variant {Simple} | {Upgradable, implementation}.
// Build it with Simple or Upgradable; the zero value is Simple.
type DeploymentKind struct {
	kind           Kind
	implementation common.Address
}

// Simple returns the variant for a contract whose address holds its own logic
func Simple() DeploymentKind {
	return DeploymentKind{kind: KindSimple}
}

// Upgradable returns the variant for a proxy delegating to implementation
func Upgradable(implementation common.Address) DeploymentKind {
	return DeploymentKind{kind: KindUpgradable, implementation: implementation}
}

// Kind returns the discriminator
func (k DeploymentKind) Kind() Kind {
	if k.kind == "" {
		return KindSimple
	}
	return k.kind
}

// IsUpgradable reports whether this is the upgradable variant
func (k DeploymentKind) IsUpgradable() bool {
	return k.kind == KindUpgradable
}

// Implementation returns the logic address; ok is false for simple deployments
func (k DeploymentKind) Implementation() (common.Address, bool) {
	if k.kind != KindUpgradable {
		return common.Address{}, false
	}
	return k.implementation, true
}

// Args maps constructor/initializer parameter names to the submitted values
type Args map[string]any

// DeploymentRecord represents one completed deployment event in the registry
type DeploymentRecord struct {
	Tag        string
	Address    common.Address
	Version    string
	Date       time.Time
	Args       Args
	Deployment DeploymentKind
}

// recordJSON is the persisted shape other tooling reads
type recordJSON struct {
	Tag            string  `json:"tag,omitempty"`
	Address        string  `json:"address"`
	Version        string  `json:"version"`
	Date           string  `json:"date"`
	Args           Args    `json:"args"`
	IsUpgradable   bool    `json:"isUpgradable"`
	Implementation *string `json:"implementation,omitempty"`
}

// MarshalJSON writes the record with checksummed addresses and an ISO date
func (r DeploymentRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Tag:          r.Tag,
		Address:      r.Address.Hex(),
		Version:      r.Version,
		Date:         r.Date.UTC().Format(DateLayout),
		Args:         r.Args,
		IsUpgradable: r.Deployment.IsUpgradable(),
	}
	if out.Args == nil {
		out.Args = Args{}
	}
	if impl, ok := r.Deployment.Implementation(); ok {
		hex := impl.Hex()
		out.Implementation = &hex
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a persisted record, rejecting documents where the
// implementation field disagrees with isUpgradable. Numeric args decode as
// json.Number so rewriting the document reproduces them digit for digit.
func (r *DeploymentRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return err
	}

	if !common.IsHexAddress(in.Address) {
		return fmt.Errorf("invalid record address %q", in.Address)
	}

	date, err := time.Parse(time.RFC3339Nano, in.Date)
	if err != nil {
		return fmt.Errorf("invalid record date %q: %w", in.Date, err)
	}

	kind := Simple()
	switch {
	case in.IsUpgradable && in.Implementation == nil:
		return fmt.Errorf("upgradable record at %s has no implementation", in.Address)
	case !in.IsUpgradable && in.Implementation != nil:
		return fmt.Errorf("simple record at %s carries an implementation", in.Address)
	case in.IsUpgradable:
		if !common.IsHexAddress(*in.Implementation) {
			return fmt.Errorf("invalid implementation address %q", *in.Implementation)
		}
		kind = Upgradable(common.HexToAddress(*in.Implementation))
	}

	*r = DeploymentRecord{
		Tag:        in.Tag,
		Address:    common.HexToAddress(in.Address),
		Version:    in.Version,
		Date:       date.UTC(),
		Args:       in.Args,
		Deployment: kind,
	}
	return nil
}

// DisplayTag returns the tag, or "untagged" when none was given
func (r DeploymentRecord) DisplayTag() string {
	if r.Tag == "" {
		return UntaggedLabel
	}
	return r.Tag
}
