// Package template provides parameterized policy templates.
//
// A template is a YAML file pairing a parameter list with a policy
// document containing {{name}} placeholders. Instantiating a template
// substitutes caller-supplied parameter values (falling back to
// declared defaults), parses the result, and validates it as a
// regular policy.
//
// Registry loads a directory of templates and can hot-reload it on
// file changes via fsnotify, so operators can ship new templates
// without a restart.
package template
