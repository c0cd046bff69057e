/*
Package markov builds character n-gram Markov models from a word list and
samples new, pronounceable words from them.

A Lexicon is read from a plain word list, one word per line. Counts
accumulates how often each gram of a fixed length is followed by the next
overlapping gram, and Normalize turns those counts into an immutable Model
of transition probabilities. A Generator walks a Model from the synthetic
start state until it draws the end marker, occasionally joining several
segments into one compound word.

Counts can be persisted in a SQLite database through a Store, which supports
several named models, merging, pruning, statistics and JSON export/import.
*/
package markov
