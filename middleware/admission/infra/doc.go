// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Tracker: log de janela deslizante por cliente, em memória e particionado em shards
//   - UserAgentClassifier: heurística estática sobre o user-agent
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: contadores de decisão
package infra
