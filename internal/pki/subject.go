package pki

import (
	"bufio"
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// oidEmailAddress is the PKCS#9 emailAddress attribute.
var oidEmailAddress = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}

// Subject holds the distinguished name attributes of a protected or user app
// identity.
type Subject struct {
	Country            string `yaml:"country"`
	State              string `yaml:"state"`
	Locality           string `yaml:"locality"`
	Organization       string `yaml:"organization"`
	OrganizationalUnit string `yaml:"organizational_unit"`
	CommonName         string `yaml:"common_name"`
	Email              string `yaml:"email"`
}

// Validate reports whether s can be used as a certificate subject.
func (s Subject) Validate() error {
	return FieldCountry.validate(s.Country)
}

// Name converts s into a pkix.Name. Attributes are emitted in the order
// C, ST, L, O, OU, CN, emailAddress; empty attributes are omitted.
func (s Subject) Name() pkix.Name {
	var n pkix.Name
	if s.Country != "" {
		n.Country = []string{s.Country}
	}
	if s.State != "" {
		n.Province = []string{s.State}
	}
	if s.Locality != "" {
		n.Locality = []string{s.Locality}
	}
	if s.Organization != "" {
		n.Organization = []string{s.Organization}
	}
	if s.OrganizationalUnit != "" {
		n.OrganizationalUnit = []string{s.OrganizationalUnit}
	}
	n.CommonName = s.CommonName
	if s.Email != "" {
		n.ExtraNames = append(n.ExtraNames, pkix.AttributeTypeAndValue{
			Type: oidEmailAddress,
			Value: asn1.RawValue{
				Class: asn1.ClassUniversal,
				Tag:   asn1.TagIA5String,
				Bytes: []byte(s.Email),
			},
		})
	}
	return n
}

// SubjectFromName extracts the attributes of a parsed certificate or CSR
// subject.
func SubjectFromName(n pkix.Name) Subject {
	s := Subject{
		Country:            first(n.Country),
		State:              first(n.Province),
		Locality:           first(n.Locality),
		Organization:       first(n.Organization),
		OrganizationalUnit: first(n.OrganizationalUnit),
		CommonName:         n.CommonName,
	}
	for _, atv := range n.Names {
		if atv.Type.Equal(oidEmailAddress) {
			if v, ok := atv.Value.(string); ok {
				s.Email = v
			}
		}
	}
	return s
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Field identifies one subject attribute requested from an InputProvider.
type Field int

const (
	FieldCountry Field = iota
	FieldState
	FieldLocality
	FieldOrganization
	FieldOrganizationalUnit
	FieldCommonName
	FieldEmail
)

// subjectFields is the order attributes are collected in.
var subjectFields = []Field{
	FieldCountry,
	FieldState,
	FieldLocality,
	FieldOrganization,
	FieldOrganizationalUnit,
	FieldCommonName,
	FieldEmail,
}

func (f Field) String() string {
	switch f {
	case FieldCountry:
		return "country"
	case FieldState:
		return "state"
	case FieldLocality:
		return "locality"
	case FieldOrganization:
		return "organization"
	case FieldOrganizationalUnit:
		return "organizational unit"
	case FieldCommonName:
		return "common name"
	case FieldEmail:
		return "email"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Prompt returns the console prompt for f.
func (f Field) Prompt() string {
	switch f {
	case FieldCountry:
		return "Enter Country Name (2 letter code): "
	case FieldState:
		return "Enter State or province name (full name): "
	case FieldLocality:
		return "Enter Locality name (e.g. city): "
	case FieldOrganization:
		return "Enter Organization name (e.g. company): "
	case FieldOrganizationalUnit:
		return "Enter Organizational Unit Name (e.g. section): "
	case FieldCommonName:
		return "Enter Common name (e.g. fully qualified host name): "
	case FieldEmail:
		return "Enter email address: "
	default:
		return fmt.Sprintf("Enter %s: ", f)
	}
}

func (f Field) validate(value string) error {
	if f == FieldCountry && utf8.RuneCountInString(value) != 2 {
		return fmt.Errorf("%w: Country name should be 2 byte long, got %q", ErrInvalidSubject, value)
	}
	return nil
}

func (s *Subject) set(f Field, value string) {
	switch f {
	case FieldCountry:
		s.Country = value
	case FieldState:
		s.State = value
	case FieldLocality:
		s.Locality = value
	case FieldOrganization:
		s.Organization = value
	case FieldOrganizationalUnit:
		s.OrganizationalUnit = value
	case FieldCommonName:
		s.CommonName = value
	case FieldEmail:
		s.Email = value
	}
}

func (s Subject) get(f Field) string {
	switch f {
	case FieldCountry:
		return s.Country
	case FieldState:
		return s.State
	case FieldLocality:
		return s.Locality
	case FieldOrganization:
		return s.Organization
	case FieldOrganizationalUnit:
		return s.OrganizationalUnit
	case FieldCommonName:
		return s.CommonName
	case FieldEmail:
		return s.Email
	}
	return ""
}

// InputProvider supplies subject attribute values.
//
// Ask returns the value for a field. When a value fails validation,
// CollectSubject calls Reject: a nil result asks for the field again, a
// non-nil result aborts the collection with that error.
type InputProvider interface {
	Ask(field Field) (string, error)
	Reject(field Field, reason error) error
}

// CollectSubject asks p for every subject attribute, retrying a field until
// its value is accepted or p gives up.
func CollectSubject(p InputProvider) (Subject, error) {
	var s Subject
	for _, f := range subjectFields {
		for {
			value, err := p.Ask(f)
			if err != nil {
				return Subject{}, fmt.Errorf("read %s: %w", f, err)
			}

			if err := f.validate(value); err != nil {
				if rerr := p.Reject(f, err); rerr != nil {
					return Subject{}, rerr
				}
				continue
			}

			s.set(f, value)
			break
		}
	}
	return s, nil
}

// PromptProvider reads attribute values line by line, writing a prompt
// before each read.
type PromptProvider struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPromptProvider creates a console provider. When interactive is false a
// rejected value aborts instead of re-prompting.
func NewPromptProvider(in io.Reader, out io.Writer, interactive bool) *PromptProvider {
	return &PromptProvider{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

func (p *PromptProvider) Ask(field Field) (string, error) {
	if _, err := io.WriteString(p.out, field.Prompt()); err != nil {
		return "", err
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *PromptProvider) Reject(field Field, reason error) error {
	if !p.interactive {
		return reason
	}
	_, err := fmt.Fprintf(p.out, "[-] %v\n", reason)
	return err
}

// StaticProvider answers from a fixed Subject. Rejections are fatal.
type StaticProvider struct {
	subject Subject
}

func NewStaticProvider(s Subject) *StaticProvider {
	return &StaticProvider{subject: s}
}

func (p *StaticProvider) Ask(field Field) (string, error) {
	return p.subject.get(field), nil
}

func (p *StaticProvider) Reject(field Field, reason error) error {
	return reason
}

// LoadSubjectFile reads subject attributes from a YAML document. Unknown keys
// are rejected.
func LoadSubjectFile(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read subject file: %w", ErrIOFailure, err)
	}

	var s Subject
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse subject file %s: %w", ErrInvalidSubject, path, err)
	}

	return NewStaticProvider(s), nil
}
