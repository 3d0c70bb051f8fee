/*
Package rom maps records onto a key-value store with Redis-style hashes and
sets, and queries them by secondary indexes.

We implement:

1. Models, immutable schemas made of field descriptors. Each field has a codec
that converts values to a stored string and to an index token.

2. Records, saved as one hash each, with only changed fields written on update.

3. Index sets, one per indexed field and token, kept in sync with the record
hashes on every save and delete.

4. Queries, conjunctions of equality and inequality filters, evaluated as set
intersection and set difference inside the store.

5. Dataset replacement, which swaps a model's entire contents in one atomic
store step and renumbers records 1..N.

# Technical Details

**Keys.**
Every key lives under a reserved prefix and the model namespace, see
NamespacePrefix. Bulk deletion of a model is deletion of that prefix.

**Null.**
A Null field is left out of the record hash. The hash always has an "_id"
field, so a record exists even if all of its fields are Null.

**Tokens.**
Index tokens are "~" for Null and "=" followed by the codec's token otherwise,
which keeps Null apart from the empty string. Hash-indexed fields replace the
codec's token by its hex SHA-256 digest.

**Id counter.**
The counter holds the last allocated primary key. Ids are never reused, except
that ReplaceAll resets the counter to the number of records it wrote.

**Consistency.**
A save or delete is one pipelined batch; a concurrent reader may see index sets
halfway updated. ReplaceAll, Reindex and DestroyAll go through Store.Replace,
which is atomic as far as the store's scripting or transactions are.
*/
package rom
