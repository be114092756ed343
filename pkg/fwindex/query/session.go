package query

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/gorilla/schema"
)

// Session is the mutable browsing state held against an immutable catalog.
type Session struct {
	Path      string
	Query     string
	Filters   Filters
	Sort      Sort
	selection map[string]struct{}
}

// NewSession returns a session at the root with the default sort.
func NewSession() *Session {
	return &Session{Sort: DefaultSort, selection: make(map[string]struct{})}
}

// Navigate moves to a directory.
func (s *Session) Navigate(p string) { s.Path = CleanPrefix(p) }

// Up moves to the parent directory. It is a no-op at the root.
func (s *Session) Up() { s.Path = ParentOf(s.Path) }

// AtRoot reports whether the session is at the root.
func (s *Session) AtRoot() bool { return s.Path == "" }

// Toggle flips the selection state of a file path and reports whether it is
// now selected.
func (s *Session) Toggle(p string) bool {
	if _, ok := s.selection[p]; ok {
		delete(s.selection, p)
		return false
	}
	s.selection[p] = struct{}{}
	return true
}

// Select adds paths to the selection.
func (s *Session) Select(paths ...string) {
	for _, p := range paths {
		s.selection[p] = struct{}{}
	}
}

// IsSelected reports whether p is selected.
func (s *Session) IsSelected(p string) bool {
	_, ok := s.selection[p]
	return ok
}

// Selection returns the selected paths, sorted.
func (s *Session) Selection() []string {
	out := make([]string, 0, len(s.selection))
	for p := range s.selection {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() { s.selection = make(map[string]struct{}) }

// linkState is the subset of a session carried in shareable links.
type linkState struct {
	Path      string   `schema:"path,omitempty"`
	Query     string   `schema:"q,omitempty"`
	Type      string   `schema:"type,omitempty"`
	Device    string   `schema:"device,omitempty"`
	ISP       string   `schema:"isp,omitempty"`
	Extension string   `schema:"ext,omitempty"`
	Sort      string   `schema:"sort,omitempty"`
	Desc      bool     `schema:"desc,omitempty"`
	Selection []string `schema:"sel,omitempty"`
}

var (
	linkEncoder = schema.NewEncoder()
	linkDecoder = func() *schema.Decoder {
		d := schema.NewDecoder()
		d.IgnoreUnknownKeys(true)
		return d
	}()
)

// Values encodes the shareable subset of the session: path, search query,
// filters, sort, and selection.
func (s *Session) Values() (url.Values, error) {
	st := linkState{
		Path:      s.Path,
		Query:     s.Query,
		Type:      s.Filters.Type,
		Device:    s.Filters.Device,
		ISP:       s.Filters.ISP,
		Extension: s.Filters.Extension,
		Desc:      s.Sort.Desc,
		Selection: s.Selection(),
	}
	if s.Sort.Key != DefaultSort.Key {
		st.Sort = string(s.Sort.Key)
	}
	values := url.Values{}
	if err := linkEncoder.Encode(st, values); err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return values, nil
}

// Encode returns the session as a URL query string.
func (s *Session) Encode() (string, error) {
	values, err := s.Values()
	if err != nil {
		return "", err
	}
	return values.Encode(), nil
}

// SessionFromValues rebuilds a session from decoded link values. Unknown
// keys are ignored; an unknown sort key is an error.
func SessionFromValues(values url.Values) (*Session, error) {
	var st linkState
	if err := linkDecoder.Decode(&st, values); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	key, err := ParseSortKey(st.Sort)
	if err != nil {
		return nil, err
	}

	s := NewSession()
	s.Navigate(st.Path)
	s.Query = st.Query
	s.Filters = Filters{
		Type:      st.Type,
		Device:    st.Device,
		ISP:       st.ISP,
		Extension: st.Extension,
	}
	s.Sort = Sort{Key: key, Desc: st.Desc}
	s.Select(st.Selection...)
	return s, nil
}

// DecodeSession parses a URL query string produced by Encode.
func DecodeSession(raw string) (*Session, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return SessionFromValues(values)
}
