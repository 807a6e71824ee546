/*
Package builder runs the compilation pass that precedes every sweep.

Each descriptor names a build command and a working directory. The pass
walks the descriptors in order and, for each one the filter keeps:

 1. Cache lookup: when the descriptor's identity is already cached, the
    cached failure flag is adopted and nothing is built.

 2. Build: otherwise the build command runs through the shell in the
    descriptor's working directory. Its combined output is captured and
    logged when the command fails, and a failing build marks the
    descriptor as failed.

 3. Record: the outcome is stored in the cache whether or not the build
    succeeded, so broken variants are not rebuilt on the next sweep.

Failed descriptors stay in the list. The execution engine skips them.
*/
package builder
