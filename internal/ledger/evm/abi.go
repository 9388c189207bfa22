package evm

// Contract methods of the deployed credential registry.
const (
	methodVerify = "verificarCredencial"
	methodIssue  = "emitirCredencial"
	methodRevoke = "revogarCredencial"
)

const registryABI = `[
  {"type":"function","name":"verificarCredencial","stateMutability":"view",
   "inputs":[{"name":"usuario","type":"address"},{"name":"hash","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"emitirCredencial","stateMutability":"nonpayable",
   "inputs":[{"name":"usuario","type":"address"},{"name":"hash","type":"bytes32"}],
   "outputs":[]},
  {"type":"function","name":"revogarCredencial","stateMutability":"nonpayable",
   "inputs":[{"name":"hash","type":"bytes32"}],
   "outputs":[]}
]`
