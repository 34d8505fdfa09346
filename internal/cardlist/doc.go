// Package cardlist reads card list files and writes deck exports.
//
// Three formats are accepted: JSON (an array or an object with a "cards"
// array), YAML of the same shape, and plain text lines such as
//
//	4 Thalia, Guardian of Thraben (DKA) 24 #Spell Tax
//
// Entries naming the same printing are coalesced into one with summed
// quantity and merged tags.
package cardlist
