// Package device stores device records keyed by their bearer credential.
//
// # Redis layout
//
//	<prefix>:t:<sha256(token)>                 device record (binary)
//	<prefix>:d:<len(user id)>:<user id>:<device id> sha256(token) of the device's current credential
//	<prefix>:u:<user id>                       set of the user's device ids
//
// Upsert swaps the credential index in one Lua script so a device never has
// two live credentials. Last-seen updates are last-writer-wins and never
// recreate a deleted record.
package device
