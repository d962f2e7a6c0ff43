// Package ingest loads tenants, threads and messages from YAML fixtures.
package ingest

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Fixture is one tenant's mailbox.
type Fixture struct {
	Tenant  TenantDoc   `yaml:"tenant"`
	Threads []ThreadDoc `yaml:"threads"`
}

// TenantDoc identifies the mailbox owner.
type TenantDoc struct {
	ID    string `yaml:"id"`
	Email string `yaml:"email"`
}

// ThreadDoc is a thread and its messages.
type ThreadDoc struct {
	ID       string       `yaml:"id"`
	Subject  string       `yaml:"subject"`
	Messages []MessageDoc `yaml:"messages"`
}

// MessageDoc is one message. To and Cc accept a single header string or a
// list of addresses.
type MessageDoc struct {
	ID       string      `yaml:"id"`
	Subject  string      `yaml:"subject"`
	From     string      `yaml:"from"`
	To       AddressList `yaml:"to"`
	Cc       AddressList `yaml:"cc"`
	BodyText string      `yaml:"body_text"`
	BodyHTML string      `yaml:"body_html"`
	SentAt   string      `yaml:"sent_at"`
}

// AddressList holds a recipient field in its stored form: a raw header
// string, or a JSON array when the fixture gave a list.
type AddressList string

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *AddressList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*a = AddressList(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return eris.Wrap(err, "ingest: decode address list")
		}
		if len(list) == 0 {
			*a = ""
			return nil
		}
		b, err := json.Marshal(list)
		if err != nil {
			return eris.Wrap(err, "ingest: encode address list")
		}
		*a = AddressList(b)
		return nil
	default:
		return eris.Errorf("ingest: line %d: addresses must be a string or a list", node.Line)
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339, a space separated date-time or a bare date.
// Times without a zone are UTC. An empty string yields nil.
func parseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, eris.Errorf("ingest: unrecognised time %q", s)
}

// Load decodes a fixture and checks required fields.
func Load(r io.Reader) (*Fixture, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return nil, eris.Wrap(err, "ingest: decode fixture")
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Load(f)
}

func (fx *Fixture) validate() error {
	if fx.Tenant.ID == "" {
		return eris.New("ingest: tenant.id is required")
	}
	seen := make(map[string]bool)
	for i, th := range fx.Threads {
		if th.ID == "" {
			return eris.Errorf("ingest: threads[%d]: id is required", i)
		}
		for j, m := range th.Messages {
			if m.ID == "" {
				return eris.Errorf("ingest: thread %s: messages[%d]: id is required", th.ID, j)
			}
			if seen[m.ID] {
				return eris.Errorf("ingest: duplicate message id %s", m.ID)
			}
			seen[m.ID] = true
			if _, err := parseTime(m.SentAt); err != nil {
				return eris.Wrapf(err, "ingest: message %s", m.ID)
			}
		}
	}
	return nil
}
