package evm

// PhantomLinkABI covers the mailbox calls the messenger makes. Confidential
// handles are bytes32 on the wire.
const PhantomLinkABI = `[
  {"type":"function","name":"sendMessage","stateMutability":"nonpayable",
   "inputs":[
     {"name":"recipient","type":"address"},
     {"name":"ciphertext","type":"string"},
     {"name":"encryptedKey","type":"bytes32"},
     {"name":"inputProof","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"messageCount","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMessage","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],
   "outputs":[
     {"name":"sender","type":"address"},
     {"name":"ciphertext","type":"string"},
     {"name":"encryptedKey","type":"bytes32"},
     {"name":"timestamp","type":"uint256"}]},
  {"type":"function","name":"allowMessageKey","stateMutability":"nonpayable",
   "inputs":[
     {"name":"owner","type":"address"},
     {"name":"index","type":"uint256"},
     {"name":"grantee","type":"address"}],
   "outputs":[]}
]`
