package unit

const systemdUnitTemplate = `[Unit]
Description={{escape .Description}}
{{- if .Documentation}}
Documentation={{.Documentation}}
{{- end}}
After={{join .After " "}}
Wants={{join .Wants " "}}

[Service]
Type=simple
User={{.User}}
Group={{.Group}}

# Working directory
WorkingDirectory={{escape .WorkingDirectory}}

ExecStart={{execStart .ExecCommand}}

# Restart policy
Restart={{.RestartPolicy}}
RestartSec={{.RestartSec}}

# Environment configuration
{{- if .EnvironmentFile}}
EnvironmentFile=-{{escape .EnvironmentFile}}
{{- end}}
{{- range .EnvironmentLines}}
Environment={{.}}
{{- end}}

# Logging
StandardOutput=journal
StandardError=journal
SyslogIdentifier={{escape .SyslogIdentifier}}

[Install]
WantedBy=multi-user.target
`
