// Package envfile handles the bot .env configuration: parsing, creating it
// from a template and updating single keys without touching the rest.
package envfile

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/xuibot/botctl/pkg/utils"
)

const (
	DefaultName = ".env"
	filePerm    = 0o600
)

// TemplateNames are the template file names looked up in the project directory.
var TemplateNames = []string{".env.example", "env.example", ".env.sample"}

// RequiredKeys must be set for the bot to start.
var RequiredKeys = []string{"TELEGRAM_BOT_TOKEN", "XUI_URL"}

var ErrTemplateNotFound = errors.New("env template not found")

// Key is a setting the bot reads from its environment.
type Key struct {
	Name     string
	Default  string
	Comment  string
	Integer  bool
	// Optional integer keys may be left empty.
	Optional bool
}

// KnownKeys are the settings the bot understands, in the order they are written to a new file.
var KnownKeys = []Key{
	{Name: "TELEGRAM_BOT_TOKEN", Comment: "Telegram bot token from @BotFather"},
	{Name: "XUI_URL", Comment: "x-ui panel address, e.g. http://127.0.0.1:54321"},
	{Name: "XUI_USERNAME", Default: "admin"},
	{Name: "XUI_PASSWORD", Default: "admin"},
	{Name: "XUI_SUBSCRIPTION_HOST", Comment: "Subscription host, usually a different port from the panel"},
	{Name: "XUI_SUBSCRIPTION_PORT"},
	{Name: "DEFAULT_PROTOCOL", Default: "vmess"},
	{Name: "DEFAULT_EXPIRY_DAYS", Default: "30", Integer: true},
	{Name: "DEFAULT_TOTAL_GB", Default: "100", Integer: true},
	{Name: "DEFAULT_INBOUND_ID", Comment: "Inbound to use, found automatically when empty", Integer: true, Optional: true},
	{Name: "WEB_APP_URL", Comment: "HTTPS page hosting the subscription copy button"},
}

type Assignment struct {
	Key   string
	Value string
}

type Values map[string]string

func Parse(r io.Reader) (Values, error) {
	values := make(Values)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.WithMessage(err, "failed to read env file")
	}

	return values, nil
}

func unquote(value string) string {
	if len(value) >= 2 { //nolint:mnd
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}

	// Inline comment after an unquoted value.
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}

	return value
}

func Load(path string) (Values, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	return Parse(f)
}

// Missing returns the keys that are absent, empty or still hold a template placeholder.
func (v Values) Missing(keys ...string) []string {
	return lo.Filter(keys, func(key string, _ int) bool {
		return isPlaceholder(v[key])
	})
}

// Problems lists human readable issues: missing required keys and
// values the bot would fail to parse.
func (v Values) Problems() []string {
	problems := lo.Map(v.Missing(RequiredKeys...), func(key string, _ int) string {
		return key + " is not set"
	})

	for _, key := range KnownKeys {
		raw, present := v[key.Name]
		if !key.Integer || !present {
			continue
		}

		value := strings.TrimSpace(raw)
		if value == "" {
			if !key.Optional {
				problems = append(problems, key.Name+" is empty, remove it or set an integer")
			}

			continue
		}
		if _, err := strconv.Atoi(value); err != nil {
			problems = append(problems, key.Name+" must be an integer, got "+strconv.Quote(value))
		}
	}

	return problems
}

// Skeleton renders a new file with every known key, used when the project
// ships no template.
func Skeleton() []byte {
	var b strings.Builder

	for _, key := range KnownKeys {
		if key.Comment != "" {
			b.WriteString("# " + key.Comment + "\n")
		}
		b.WriteString(key.Name + "=" + key.Default + "\n")
	}

	return []byte(b.String())
}

func isPlaceholder(value string) bool {
	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)

	return value == "" ||
		strings.HasPrefix(lower, "your_") ||
		strings.HasPrefix(lower, "your-") ||
		(strings.HasPrefix(value, "<") && strings.HasSuffix(value, ">"))
}

// FindTemplate returns the first existing template in dir.
func FindTemplate(dir string, names ...string) (string, error) {
	if len(names) == 0 {
		names = TemplateNames
	}

	for _, name := range names {
		p := name
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, name)
		}

		if utils.IsFileExists(p) {
			return p, nil
		}
	}

	return "", errors.WithMessagef(ErrTemplateNotFound, "looked for %s in %s", strings.Join(names, ", "), dir)
}

// Bootstrap creates path from templatePath unless path already exists.
// An empty templatePath writes the Skeleton instead.
// It reports whether the file was created.
func Bootstrap(templatePath, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, errors.WithMessage(err, "failed to stat env file")
	}

	if templatePath == "" {
		err = writeExclusive(path, Skeleton())
	} else {
		err = utils.CopyFile(templatePath, path, filePerm)
	}
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "failed to copy env template")
	}

	return true, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	return err
}

// Set updates keys in place, appending the ones not present yet.
func Set(ctx context.Context, path string, assignments []Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	replacements := lo.Map(assignments, func(a Assignment, _ int) utils.LineReplacement {
		return utils.LineReplacement{
			Prefix: a.Key + "=",
			Line:   a.Key + "=" + quoteIfNeeded(a.Value),
		}
	})

	return utils.FindLineAndReplaceOrAdd(ctx, path, replacements)
}

func quoteIfNeeded(value string) string {
	if strings.ContainsAny(value, " #\"'\t") {
		return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}

	return value
}

// ParseAssignments parses KEY=VALUE pairs given on the command line.
func ParseAssignments(pairs []string) ([]Assignment, error) {
	result := make([]Assignment, 0, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("invalid assignment %q, expected KEY=VALUE", pair)
		}

		result = append(result, Assignment{Key: key, Value: value})
	}

	return result, nil
}
