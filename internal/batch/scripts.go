package batch

import (
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// JobInfo is the slice of the caller's job object that script generation
// needs: a name, a file-name suffix, and the directory the job runs from.
type JobInfo struct {
	Name    string
	Suffix  string
	RunPath string
}

// Script is an in-memory submission or execution script.
type Script struct {
	Name string // file name the script should be written as
	Text string
}

// WriteTo persists the script under dir and returns the written path.
func (s *Script) WriteTo(dir string) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	path := filepath.Join(dir, s.Name)
	if err := os.WriteFile(path, []byte(s.Text), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// runnerTemplate is the tracked command runner all backends submit: it
// records start/done timestamps around the command and propagates the exit
// code. precmd carries the batch directives, modstr any module lines.
var runnerTemplate = template.Must(template.New("runner").Parse(`#!/bin/bash
{{.Precmd}}{{if .Modstr}}
{{.Modstr}}{{end}}
cd {{.RunPath}}
date +'%y-%m-%d-%H:%M:%S'
echo "Running {{.Name}}"
{{.Command}}
exitcode=$?
echo Done
date +'%y-%m-%d-%H:%M:%S'
if [[ $exitcode != 0 ]]; then
    echo "Exited with code: $exitcode" >&2
fi
exit $exitcode
`))

func renderRunnerScript(job *JobInfo, command, precmd, modstr string) (string, error) {
	runPath := job.RunPath
	if runPath == "" {
		runPath = "."
	}
	var b strings.Builder
	err := runnerTemplate.Execute(&b, struct {
		Precmd, Modstr, RunPath, Name, Command string
	}{
		Precmd:  strings.TrimRight(precmd, "\n"),
		Modstr:  strings.TrimRight(modstr, "\n"),
		RunPath: runPath,
		Name:    job.Name,
		Command: command,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
