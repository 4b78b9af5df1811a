// Package retrieval 实现文档分块、向量化与 L2 最近邻排序。
//
// 所有文档的分块共同建立一个扁平索引，按与查询向量的平方 L2 距离升序返回前 K 个分块，
// 距离相同时保持分块原始顺序。
package retrieval
