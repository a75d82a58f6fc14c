// Package vocabulary binds entity labels to similarity indexes.
//
// A Definition is plain data handed over by a vocabulary source. NewGroup
// turns it into an immutable Group; when the definition carries a canonical
// value, every match against the group reports that value instead of the
// member that matched (closed lists with synonyms).
package vocabulary
