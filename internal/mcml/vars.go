package mcml

var (
	Debug = false // set to true for verbose debug output and photon event counters
	// Compile time checks for the accumulation policies
	_ blockCache = (*globalOnly)(nil)
	_ blockCache = (*sharedCache64)(nil)
	_ blockCache = (*sharedCache32)(nil)
	_ recorder   = (*absorptionRecorder)(nil)
	_ recorder   = ignoreAbsorption{}
)
