package build

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/sofmeright/ue4-docker/src/buildconfig"
)

// postRunMessage is echoed after every RUN directive so that the long
// silence while Docker commits a large layer is explained in the log.
var postRunMessage = []string{
	"",
	"RUN directive complete. Docker will now commit the filesystem layer to disk.",
	"Note that for large filesystem layers this can take quite some time.",
	"Performing filesystem layer commit...",
	"",
}

var (
	// # escape=<char> parser directive
	escapeRe = regexp.MustCompile(`#\s*escape\s*=\s*([^\n])\n`)
)

// Render expands a Dockerfile template against ctx. Missing keys evaluate
// to their zero value so templates can test optional settings with if.
// Runs of blank lines left behind by template actions are collapsed and the
// result always ends with exactly one newline.
func Render(text string, ctx map[string]any) (string, error) {
	tmpl, err := template.New("Dockerfile").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing Dockerfile template: %w", err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("rendering Dockerfile template: %w", err)
	}
	return compactWhitespace(b.String()), nil
}

func compactWhitespace(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.Trim(s, "\n") + "\n"
}

// InjectPostRunMessage appends echo commands to the end of every RUN
// directive, honouring the Dockerfile's escape directive for continuation
// lines.
func InjectPostRunMessage(contents string, platform buildconfig.Platform) string {
	prefix, suffix := "echo '", "'"
	if platform == buildconfig.Windows {
		prefix, suffix = "echo.", ""
	}
	var echo strings.Builder
	for _, line := range postRunMessage {
		echo.WriteString(" && " + prefix + line + suffix)
	}

	contents = strings.ReplaceAll(contents, "\r\n", "\n")

	escape := `\`
	if m := escapeRe.FindStringSubmatch(contents); m != nil {
		escape = m[1]
	}
	runRe := regexp.MustCompile(`(?sm)^RUN(.+?[^` + regexp.QuoteMeta(escape) + `])\n`)

	return runRe.ReplaceAllStringFunc(contents, func(match string) string {
		body := strings.TrimSuffix(match, "\n")
		return body + echo.String() + "\n"
	})
}
