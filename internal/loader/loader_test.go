package loader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/parser"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestFSLoader_Lookup(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"Common/Content Blocks/LetterHeader.txt":  "Firm header",
		"Common/Content Blocks/LetterAddress.txt": "Address",
		"templates/Engagement/Retainer.md":        "# Retainer",
		"Documents/Standard Terms.html":           "<p>Terms</p>",
		".hidden/Secret.txt":                      "nope",
		"notes.bin":                               "ignored",
	})
	l, err := NewFS(root)
	require.NoError(t, err)

	tests := []struct {
		id   string
		want string
	}{
		{"dc-letterheader", "Common/Content Blocks/LetterHeader.txt"},
		{"LETTERHEADER", "Common/Content Blocks/LetterHeader.txt"},
		{"dc-letteraddress", "Common/Content Blocks/LetterAddress.txt"},
		{"Engagement/Retainer.docx", "templates/Engagement/Retainer.md"},
		{"templates/engagement/retainer", "templates/Engagement/Retainer.md"},
		{`"Standard Terms"`, "Documents/Standard Terms.html"},
		{"terms", "Documents/Standard Terms.html"},
	}
	for _, tt := range tests {
		got, ok := l.Lookup(tt.id)
		if assert.True(t, ok, tt.id) {
			assert.Equal(t, tt.want, got, tt.id)
		}
	}

	for _, missing := range []string{"Secret", "notes", "nothing/here", ""} {
		_, ok := l.Lookup(missing)
		assert.False(t, ok, missing)
	}
}

func TestFSLoader_Load(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"Content Blocks/Header.txt": "Dear {{ context.client.name }}\n{{content:Footer}}",
	})
	l, err := NewFS(root)
	require.NoError(t, err)

	tree, err := l.Load(context.Background(), "header")
	require.NoError(t, err)
	sum := doctree.Summarize(tree)
	assert.Equal(t, 1, sum.Tags)

	var refs int
	for _, n := range tree {
		if r, ok := n.(doctree.ReferenceMarker); ok {
			refs++
			assert.Equal(t, "Footer", r.Identifier())
		}
	}
	assert.Equal(t, 1, refs)

	_, err = l.Load(context.Background(), "Missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerr.ErrNotFound))
}

func TestFSLoader_BlocksAndReindex(t *testing.T) {
	root := writeFiles(t, map[string]string{"a/One.txt": "1"})
	l, err := NewFS(root)
	require.NoError(t, err)
	assert.Equal(t, []Block{{ID: "a/One", Path: "a/One.txt"}}, l.Blocks())

	require.NoError(t, os.WriteFile(filepath.Join(root, "Two.md"), []byte("2"), 0o644))
	_, ok := l.Lookup("two")
	assert.False(t, ok, "not indexed before Reindex")

	require.NoError(t, l.Reindex())
	_, ok = l.Lookup("two")
	assert.True(t, ok)
	assert.Len(t, l.Blocks(), 2)
}

func TestFSLoader_IDsFor(t *testing.T) {
	root := writeFiles(t, map[string]string{"Common/Content Blocks/LetterHeader.txt": "x"})
	l, err := NewFS(root)
	require.NoError(t, err)

	ids := l.IDsFor("Common/Content Blocks/LetterHeader.txt")
	assert.Contains(t, ids, "letterheader")
	assert.Contains(t, ids, "common/content blocks/letterheader")
}

func TestNewFS_BadRoot(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestParseAliases(t *testing.T) {
	in := `
dc-Letterheader: Branding/Header.docx
signoff:
  - Blocks/Signoff A.docx
  - Blocks/Signoff B.docx
`
	a, err := ParseAliases(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Branding/Header.docx"}, a["letterheader"])
	assert.Equal(t, []string{"Blocks/Signoff A.docx", "Blocks/Signoff B.docx"}, a["signoff"])

	empty, err := ParseAliases(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseAliases(strings.NewReader("a: {b: c}"))
	require.Error(t, err)
}

func TestLoadAliases_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "blocks.yaml")
	require.NoError(t, os.WriteFile(p, []byte("letterheader: Custom/Head.txt\n"), 0o644))

	a, err := LoadAliases(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Custom/Head.txt"}, a["letterheader"])
	assert.NotEmpty(t, a["letterfooter"])

	root := writeFiles(t, map[string]string{"Custom/Head.txt": "custom", "LetterHeader.txt": "default"})
	l, err := NewFS(root, WithAliases(a))
	require.NoError(t, err)
	got, ok := l.Lookup("dc-letterheader")
	require.True(t, ok)
	assert.Equal(t, "Custom/Head.txt", got)
}

func TestRelaxed(t *testing.T) {
	root := writeFiles(t, map[string]string{"Known.txt": "hello"})
	l, err := NewFS(root)
	require.NoError(t, err)
	r := Relaxed(l)

	tree, err := r.Load(context.Background(), "Known")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", doctree.PlainText(tree))

	tree, err = r.Load(context.Background(), "Ghost")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	u, ok := tree[0].(doctree.UnresolvedReference)
	require.True(t, ok)
	assert.Equal(t, "Ghost", u.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Load(ctx, "Known")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeS3 struct {
	objects map[string]string
	fail    error
	asked   []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.asked = append(f.asked, *in.Key)
	if f.fail != nil {
		return nil, f.fail
	}
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Loader(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"blocks/Closing.txt":                             "Regards {{content:Sig}}",
		"blocks/Common/Content Blocks/LetterHeader.html": "<p>Head</p>",
	}}
	l := newS3(fake, "bucket", "blocks", nil, parser.Options{}, nil)

	tree, err := l.Load(context.Background(), "Closing")
	require.NoError(t, err)
	assert.Len(t, tree, 2)
	assert.Equal(t, []string{"blocks/Closing.docx", "blocks/Closing.html", "blocks/Closing.htm", "blocks/Closing.md", "blocks/Closing.txt"}, fake.asked)

	tree, err = l.Load(context.Background(), "dc-letterheader")
	require.NoError(t, err)
	assert.Equal(t, "Head\n", doctree.PlainText(tree))

	_, err = l.Load(context.Background(), "Nope")
	assert.ErrorIs(t, err, docerr.ErrNotFound)

	broken := newS3(&fakeS3{fail: errors.New("access denied")}, "bucket", "", nil, parser.Options{}, nil)
	_, err = broken.Load(context.Background(), "Footer")
	require.Error(t, err)
	assert.False(t, errors.Is(err, docerr.ErrNotFound))
}

func TestWatcher_ReportsChanges(t *testing.T) {
	root := writeFiles(t, map[string]string{"Blocks/Header.txt": "v1"})
	l, err := NewFS(root)
	require.NoError(t, err)

	var mu sync.Mutex
	var changes []Change
	w, err := NewWatcher(l, func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "Blocks", "Header.txt"), []byte("v2"), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range changes {
			for _, id := range c.IDs {
				if id == "header" {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "Blocks", "Footer.txt"), []byte("new"), 0o644))
	require.Eventually(t, func() bool {
		_, ok := l.Lookup("footer")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}
