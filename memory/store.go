package memory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/petasbytes/rye/internal/fsops"
	"github.com/petasbytes/rye/internal/safety"
)

const fileExt = ".md"

// Store reads and writes conversation files in one directory. It assumes a
// single writer per conversation; there is no file locking.
type Store struct {
	root   string
	newID  func() string
	logger *slog.Logger

	rename    func(oldPath, newPath string) error
	writeFile func(path string, data []byte, perm os.FileMode) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for non-fatal store events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator replaces the uuid-based id generator. Generated ids must not
// contain '-'.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// Open prepares dir (creating it if needed) and returns a Store rooted there.
func Open(dir string, opts ...Option) (*Store, error) {
	root, err := safety.InitRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	s := &Store{
		root:      root,
		newID:     newID,
		logger:    slog.Default(),
		rename:    fsops.RenameNoClobber,
		writeFile: fsops.WriteFileAtomic,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Dir returns the resolved storage directory.
func (s *Store) Dir() string { return s.root }

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// legacyID matches the hyphenated uuid names of files written before ids
// dropped their hyphens.
var legacyID = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// idOf returns the id segment of a file stem.
func idOf(stem string) string {
	if id := legacyID.FindString(stem); id != "" && (len(id) == len(stem) || stem[len(id)] == '-') {
		return id
	}
	if i := strings.IndexByte(stem, '-'); i >= 0 {
		return stem[:i]
	}
	return stem
}

// Create starts a conversation with its first user message and writes the
// initial file.
func (s *Store) Create(first Message) (*Conversation, error) {
	if first.Role != RoleUser {
		return nil, fmt.Errorf("create: first message is %s: %w", first.Role, ErrOutOfOrder)
	}
	id := s.newID()
	if id == "" || strings.ContainsRune(id, '-') {
		return nil, fmt.Errorf("create: invalid generated id %q", id)
	}
	path, err := safety.ResolveName(s.root, id+fileExt)
	if err != nil {
		return nil, &PersistError{Op: "create", Path: id + fileExt, Err: err}
	}
	if _, err := os.Lstat(path); err == nil {
		return nil, &PersistError{Op: "create", Path: path, Err: fsops.ErrExists}
	}

	first.Content = normalizeContent(first.Content)
	data := Format(placeholderTitle(id), []Message{first})
	if err := fsops.WriteFileAtomic(path, []byte(data), 0o644); err != nil {
		return nil, &PersistError{Op: "create", Path: path, Err: err}
	}
	s.logger.Debug("conversation created", "id", id, "path", path)

	return &Conversation{ID: id, Messages: []Message{first}, Path: path}, nil
}

// Append writes msgs as new sections at the end of the conversation file in
// one atomic replace. Prior content is preserved byte for byte. The in-memory
// conversation changes only when the write succeeded.
func (s *Store) Append(conv *Conversation, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	want := RoleUser
	if n := len(conv.Messages); n > 0 {
		want = conv.Messages[n-1].Role.Next()
	}

	normalized := make([]Message, len(msgs))
	var sb strings.Builder
	for i, m := range msgs {
		if m.Role != want {
			return fmt.Errorf("append %s after %d messages: %w", m.Role, len(conv.Messages)+i, ErrOutOfOrder)
		}
		m.Content = normalizeContent(m.Content)
		normalized[i] = m
		sb.WriteString(formatSection(m))
		want = m.Role.Next()
	}

	if err := fsops.AppendAtomic(conv.Path, []byte(sb.String())); err != nil {
		return &PersistError{Op: "append", Path: conv.Path, Err: err}
	}
	conv.Messages = append(conv.Messages, normalized...)
	return nil
}

// maxCollisions bounds the numeric suffix search in RenameOnTitle.
const maxCollisions = 1000

// RenameOnTitle gives the conversation its generated title: the file is moved
// to <id>-<slug>.md and its first line rewritten. A taken name gets a numeric
// suffix (-2, -3, ...). On failure the file keeps its previous name and
// content, and the conversation is unchanged.
func (s *Store) RenameOnTitle(conv *Conversation, title string) error {
	if conv.TitleFinalized {
		return ErrTitleFinalized
	}
	title = oneLine(title)
	if title == "" {
		return ErrEmptyTitle
	}
	base := conv.ID + "-" + Slugify(title)

	oldPath := conv.Path
	newPath := ""
	for n := 1; n <= maxCollisions; n++ {
		name := base + fileExt
		if n > 1 {
			name = base + "-" + strconv.Itoa(n) + fileExt
		}
		p, err := safety.ResolveName(s.root, name)
		if err != nil {
			return &PersistError{Op: "rename", Path: name, Err: err}
		}
		if p == oldPath {
			newPath = p
			break
		}
		err = s.rename(oldPath, p)
		if errors.Is(err, fsops.ErrExists) {
			continue
		}
		if err != nil {
			return &PersistError{Op: "rename", Path: oldPath, Err: err}
		}
		newPath = p
		break
	}
	if newPath == "" {
		return &PersistError{Op: "rename", Path: oldPath, Err: fmt.Errorf("no free name for %s", base)}
	}

	if err := s.rewriteHeading(newPath, title); err != nil {
		if newPath != oldPath {
			if rbErr := s.rename(newPath, oldPath); rbErr != nil {
				s.logger.Error("rollback rename failed", "from", newPath, "to", oldPath, "error", rbErr)
				conv.Path = newPath
			}
		}
		return &PersistError{Op: "retitle", Path: newPath, Err: err}
	}

	conv.Path = newPath
	conv.Title = &title
	conv.TitleFinalized = true
	s.logger.Debug("conversation renamed", "id", conv.ID, "path", newPath)
	return nil
}

// rewriteHeading replaces the first line of the file, keeping everything after it.
func (s *Store) rewriteHeading(path, title string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rest := ""
	if i := strings.IndexByte(string(data), '\n'); i >= 0 {
		rest = string(data[i+1:])
	}
	out := titlePrefix + oneLine(title) + "\n" + rest
	return s.writeFile(path, []byte(out), fi.Mode().Perm())
}

// Load resolves identifier to exactly one stored conversation and parses it.
// The identifier may be a file name (with or without .md), a full id, or an
// unambiguous id prefix.
func (s *Store) Load(identifier string) (*Conversation, error) {
	path, err := s.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistError{Op: "read", Path: path, Err: err}
	}
	title, msgs, err := Parse(string(data))
	if err != nil {
		var me *MalformedError
		if errors.As(err, &me) {
			me.Path = path
		}
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(path), fileExt)
	id := idOf(stem)
	conv := &Conversation{ID: id, Messages: msgs, Path: path}
	if title != placeholderTitle(id) {
		conv.Title = &title
	}
	conv.TitleFinalized = conv.Title != nil || stem != id
	return conv, nil
}

// Resolve maps an identifier to a file path without reading it.
func (s *Store) Resolve(identifier string) (string, error) {
	ident := strings.TrimSuffix(strings.TrimSpace(identifier), fileExt)
	if ident == "" {
		return "", &ResolveError{Identifier: identifier, Err: ErrNotFound}
	}
	entries, err := fsops.List(s.root, fileExt)
	if err != nil {
		return "", &PersistError{Op: "list", Path: s.root, Err: err}
	}

	var exactID, prefix []string
	for _, e := range entries {
		stem := strings.TrimSuffix(e.Name, fileExt)
		if stem == ident {
			return safety.ResolveName(s.root, e.Name)
		}
		id := idOf(stem)
		if id == ident {
			exactID = append(exactID, e.Name)
		}
		if strings.HasPrefix(id, ident) {
			prefix = append(prefix, e.Name)
		}
	}

	matches := prefix
	if len(exactID) > 0 {
		matches = exactID
	}
	switch len(matches) {
	case 0:
		return "", &ResolveError{Identifier: identifier, Err: ErrNotFound}
	case 1:
		return safety.ResolveName(s.root, matches[0])
	default:
		return "", &ResolveError{Identifier: identifier, Candidates: matches, Err: ErrAmbiguous}
	}
}

// Info describes a stored conversation for listings.
type Info struct {
	ID      string
	Title   string
	Name    string
	Path    string
	ModTime time.Time
}

// List returns every stored conversation, most recently modified first.
// Files whose first line cannot be read are skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := fsops.List(s.root, fileExt)
	if err != nil {
		return nil, &PersistError{Op: "list", Path: s.root, Err: err}
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(s.root, e.Name)
		title, err := readTitle(path)
		if err != nil {
			s.logger.Debug("skipping unreadable conversation", "path", path, "error", err)
			continue
		}
		out = append(out, Info{
			ID:      idOf(strings.TrimSuffix(e.Name, fileExt)),
			Title:   title,
			Name:    e.Name,
			Path:    path,
			ModTime: e.ModTime,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

func readTitle(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	line, err := bufio.NewReader(io.LimitReader(f, 4096)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if !strings.HasPrefix(line, titlePrefix) {
		return "", &MalformedError{Path: path, Line: 1, Marker: titlePrefix + "<title>"}
	}
	return strings.TrimSpace(strings.TrimPrefix(line, titlePrefix)), nil
}
