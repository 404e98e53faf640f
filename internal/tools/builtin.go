package tools

// RegisterBuiltins registers the default tool set against the given working
// directory. Read-only and utility tools run at LevelAuto; side-effecting
// tools require confirmation.
func RegisterBuiltins(r *Registry, workDir string) {
	r.MustRegister(NewReadFileTool(workDir))
	r.MustRegister(NewListDirTool(workDir))
	r.MustRegister(NewGlobTool(workDir))
	r.MustRegister(NewWriteFileTool(workDir))
	r.MustRegister(NewDeleteFileTool(workDir))
	r.MustRegister(NewRunCommandTool(workDir))
	r.MustRegister(NewCalculateTool())
	r.MustRegister(NewCurrentTimeTool())
	r.MustRegister(NewSystemInfoTool())
	r.MustRegister(NewRandomTool())
}
