package model

// SearchHit 是搜索后端单个信号（词法或向量）返回的命中记录。
type SearchHit struct {
	ChunkUID     string  `json:"chunkUid"`
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName"`
	PageLabel    string  `json:"pageLabel"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
}

// SearchResultDTO 定义了混合搜索最终返回的结果结构。
// FusedScore 由归一化后的词法与向量得分加权求和得到，范围 [0,1]。
type SearchResultDTO struct {
	ChunkUID     string  `json:"chunkUid"`
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName"`
	PageLabel    string  `json:"pageLabel"`
	Text         string  `json:"text"`
	LexicalScore float64 `json:"lexicalScore"`
	VectorScore  float64 `json:"vectorScore"`
	FusedScore   float64 `json:"fusedScore"`
	Rank         int     `json:"rank"`
}
