// Package push decides when commits leave the machine.
//
// A Counter is told about every finished commit. Each successful commit
// moves a countdown toward zero; at zero a push starts in the background and
// the countdown resets to the threshold. Commits that failed or found
// nothing to commit do not count. An optional cron schedule also pushes
// whatever was committed since the last push.
//
// The push command is a template such as "git push origin {branch}". It is
// split on whitespace first and the tokens are substituted per argument, so
// a root path containing spaces stays one argument.
package push
