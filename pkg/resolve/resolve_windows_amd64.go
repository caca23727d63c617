package resolve

// GetTEB returns the calling thread's environment block, read from the
// self pointer at GS:[0x30].
func GetTEB() uintptr

// GetModuleBase returns the base of the module in this process whose name
// hashes (hash.Module) to moduleHash, or the executable's base for 0.
// It returns 0 when no module matches.
func GetModuleBase(moduleHash uint64) uintptr {
	return ModuleBaseFrom(GetTEB(), moduleHash)
}
