package workspace

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dscherger/monotone-sub002/basicio"
	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// Options holds the contents of _MTN/options: the database path or
// alias, the branch to commit against, the signing key name and keydir,
// and an instance id stamped at Create time, written and read as a
// single basic_io stanza.
type Options struct {
	Database   string
	Branch     string
	KeyName    string
	KeyDir     string
	InstanceID string
}

func optionsPath() vocab.BookkeepingPath { return vocab.NewBookkeepingPath("options") }

func readOptions(w *Workspace) (Options, error) {
	f, err := os.Open(w.bkPath(optionsPath()))
	if os.IsNotExist(err) {
		return Options{}, nil
	}
	if err != nil {
		return Options{}, errs.Wrap(errs.Workspace, "reading _MTN/options", err)
	}
	defer f.Close()

	stanzas, err := basicio.Parse(f)
	if err != nil {
		return Options{}, errs.Wrap(errs.Workspace, "parsing _MTN/options", err)
	}
	var opts Options
	for _, s := range stanzas {
		if l, ok := s.Get("database"); ok {
			opts.Database = l.Str(0)
		}
		if l, ok := s.Get("branch"); ok {
			opts.Branch = l.Str(0)
		}
		if l, ok := s.Get("key"); ok {
			opts.KeyName = l.Str(0)
		}
		if l, ok := s.Get("keydir"); ok {
			opts.KeyDir = l.Str(0)
		}
		if l, ok := s.Get("instance"); ok {
			opts.InstanceID = l.Str(0)
		}
	}
	return opts, nil
}

func writeOptions(w *Workspace, opts Options) error {
	f, err := os.Create(w.bkPath(optionsPath()))
	if err != nil {
		return errs.Wrap(errs.Workspace, "writing _MTN/options", err)
	}
	defer f.Close()

	bw := basicio.NewWriter(f)
	bw.Preamble("1")
	var lines basicio.Stanza
	if opts.Database != "" {
		lines = append(lines, basicio.NewLine("database", opts.Database))
	}
	if opts.Branch != "" {
		lines = append(lines, basicio.NewLine("branch", opts.Branch))
	}
	if opts.KeyName != "" {
		lines = append(lines, basicio.NewLine("key", opts.KeyName))
	}
	if opts.KeyDir != "" {
		lines = append(lines, basicio.NewLine("keydir", opts.KeyDir))
	}
	if opts.InstanceID != "" {
		lines = append(lines, basicio.NewLine("instance", opts.InstanceID))
	}
	if len(lines) > 0 {
		bw.Stanza(lines)
	}
	return bw.Flush()
}

func formatPath() vocab.BookkeepingPath { return vocab.NewBookkeepingPath("format") }

func writeFormat(w *Workspace, version int) error {
	return os.WriteFile(w.bkPath(formatPath()), []byte(strconv.Itoa(version)+"\n"), 0o644)
}

// Format returns the workspace format version recorded in _MTN/format.
func (w *Workspace) Format() (int, error) {
	data, err := os.ReadFile(w.bkPath(formatPath()))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Wrap(errs.Workspace, "reading _MTN/format", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errs.Wrap(errs.Workspace, "parsing _MTN/format", err)
	}
	return v, nil
}

func updatePath() vocab.BookkeepingPath { return vocab.NewBookkeepingPath("update") }

// LastUpdate returns the revision id recorded in _MTN/update: the
// revision this workspace was last checked out or updated from.
func (w *Workspace) LastUpdate() (vocab.RevisionID, bool, error) {
	data, err := os.ReadFile(w.bkPath(updatePath()))
	if os.IsNotExist(err) {
		return vocab.RevisionID{}, false, nil
	}
	if err != nil {
		return vocab.RevisionID{}, false, errs.Wrap(errs.Workspace, "reading _MTN/update", err)
	}
	rid, err := vocab.ParseRevisionID(strings.TrimSpace(string(data)))
	if err != nil {
		return vocab.RevisionID{}, false, errs.Wrap(errs.Workspace, "parsing _MTN/update", err)
	}
	return rid, true, nil
}

// SetLastUpdate records rid in _MTN/update.
func (w *Workspace) SetLastUpdate(rid vocab.RevisionID) error {
	return os.WriteFile(w.bkPath(updatePath()), []byte(rid.String()+"\n"), 0o644)
}

func logPath() vocab.BookkeepingPath    { return vocab.NewBookkeepingPath("log") }
func commitPath() vocab.BookkeepingPath { return vocab.NewBookkeepingPath("commit") }

// Log returns the user-editable changelog draft at _MTN/log.
func (w *Workspace) Log() (string, error) {
	data, err := os.ReadFile(w.bkPath(logPath()))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Workspace, "reading _MTN/log", err)
	}
	return string(data), nil
}

// SetLog overwrites _MTN/log.
func (w *Workspace) SetLog(text string) error {
	return os.WriteFile(w.bkPath(logPath()), []byte(text), 0o644)
}

// BackupCommitMessage writes the composed commit text to _MTN/commit
// before a commit proceeds, so the message survives an aborted commit.
func (w *Workspace) BackupCommitMessage(text string) error {
	return os.WriteFile(w.bkPath(commitPath()), []byte(text), 0o644)
}

func inodeprintsPath() vocab.BookkeepingPath { return vocab.NewBookkeepingPath("inodeprints") }

func readInodeprints(w *Workspace) (map[string]string, error) {
	f, err := os.Open(w.bkPath(inodeprintsPath()))
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Workspace, "reading _MTN/inodeprints", err)
	}
	defer f.Close()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		out[line[:tab]] = line[tab+1:]
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.Workspace, "scanning _MTN/inodeprints", err)
	}
	return out, nil
}

// writeInodeprints persists w.Inodeprints to _MTN/inodeprints, one
// "path\thex" line per entry, sorted by path for deterministic output.
func writeInodeprints(w *Workspace) error {
	paths := make([]string, 0, len(w.Inodeprints))
	for p := range w.Inodeprints {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\t')
		b.WriteString(w.Inodeprints[p])
		b.WriteByte('\n')
	}
	return os.WriteFile(w.bkPath(inodeprintsPath()), []byte(b.String()), 0o644)
}
